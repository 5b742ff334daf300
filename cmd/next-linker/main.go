package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashwinyue/next-linker/internal/config"
	"github.com/ashwinyue/next-linker/internal/corpus"
	"github.com/ashwinyue/next-linker/internal/database"
	"github.com/ashwinyue/next-linker/internal/handler"
	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/report"
	"github.com/ashwinyue/next-linker/internal/repository"
	"github.com/ashwinyue/next-linker/internal/router"
	"github.com/ashwinyue/next-linker/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const appName = "next-linker"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Entity disambiguation evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Config file path (YAML)")

	cmd.AddCommand(evaluateCmd(&configPath))
	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("%s version %s\n", appName, cfg.App.Version)
			return nil
		},
	})

	return cmd
}

// evaluateFlags 命令行覆盖的配置项
type evaluateFlags struct {
	resolver  string
	strategy  string
	mask      bool
	threshold int
	workers   int
	units     []string
	output    string
}

func evaluateCmd(configPath *string) *cobra.Command {
	var flags evaluateFlags

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run a disambiguation method over every unit and report metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, flags)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runEvaluate(cmd.Context(), cfg, flags)
		},
	}

	cmd.Flags().StringVar(&flags.resolver, "resolver", "", "Disambiguation method (rule, embedding)")
	cmd.Flags().StringVar(&flags.strategy, "strategy", "", "Knowledge base strategy (in_corpus, external)")
	cmd.Flags().BoolVar(&flags.mask, "mask", false, "Mask entity tokens before vectorizing")
	cmd.Flags().IntVar(&flags.threshold, "threshold", 0, "Minimum number of contexts for a knowledge base entry")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Number of units evaluated in parallel")
	cmd.Flags().StringSliceVar(&flags.units, "units", nil, "Evaluate only these unit keys (partition/name)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Report file name (without extension)")

	return cmd
}

// applyFlags 只覆盖显式指定的参数
func applyFlags(cmd *cobra.Command, cfg *config.Config, flags evaluateFlags) {
	if cmd.Flags().Changed("resolver") {
		cfg.Resolver.Kind = config.ResolverKind(flags.resolver)
	}
	if cmd.Flags().Changed("strategy") {
		cfg.KnowledgeBase.Strategy = config.KnowledgeBaseStrategy(flags.strategy)
	}
	if cmd.Flags().Changed("mask") {
		cfg.Resolver.MaskEntity = flags.mask
	}
	if cmd.Flags().Changed("threshold") {
		cfg.KnowledgeBase.Threshold = flags.threshold
	}
	if cmd.Flags().Changed("workers") {
		cfg.Resolver.Workers = flags.workers
	}
}

func runEvaluate(ctx context.Context, cfg *config.Config, flags evaluateFlags) error {
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = newRedisClient(cfg)
		defer redisClient.Close()
	}

	services, err := service.NewServices(cfg, nil, redisClient)
	if err != nil {
		return fmt.Errorf("failed to init services: %w", err)
	}
	defer services.Close()

	dataset, err := loadDataset(services)
	if err != nil {
		return err
	}
	dataset, err = dataset.Subset(flags.units)
	if err != nil {
		return err
	}

	result, err := services.Evaluation.Evaluate(ctx, dataset)
	if err != nil {
		return err
	}

	for _, f := range cfg.Report.Formats {
		if f == "table" {
			fmt.Println(report.RenderTable(result))
			break
		}
	}

	name := flags.output
	if name == "" {
		name = fmt.Sprintf("%s_%s_%s", cfg.Corpus.Name, result.Resolver, result.Strategy)
		if cfg.Resolver.MaskEntity {
			name += "_masked"
		}
	}
	paths, err := report.NewWriter(cfg.Report.Dir, cfg.Report.Formats).Write(ctx, name, result)
	if err != nil {
		return err
	}
	for _, p := range paths {
		log.Printf("Report written: %s", p)
	}

	if cfg.Report.HardCasesPath != "" {
		if err := report.SaveHardCases(cfg.Report.HardCasesPath, result.HardCases()); err != nil {
			return err
		}
		log.Printf("Hard cases written: %s (%d)", cfg.Report.HardCasesPath, len(result.HardCases()))
	}
	return nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the evaluation run API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.Open(context.Background(), cfg.Database, cfg.App.Debug)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer db.Close()

	log.Printf("Database connected: %s", cfg.Database.DBName)

	// 初始化 Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = newRedisClient(cfg)
		defer redisClient.Close()
	}

	// 初始化各层
	repos := repository.NewRepositories(db.DB)
	services, err := service.NewServices(cfg, repos, redisClient)
	if err != nil {
		return fmt.Errorf("failed to init services: %w", err)
	}
	defer services.Close()

	dataset, err := loadDataset(services)
	if err != nil {
		return err
	}
	handlers := handler.NewHandlers(services, repos, dataset)

	// 初始化路由
	r := router.SetupRouter(handlers)

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 启动服务器
	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}

// loadDataset 加载语料并报告标注问题
func loadDataset(services *service.Services) (*model.Dataset, error) {
	dataset, err := services.Loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	if n := corpus.ReportIssues(dataset); n > 0 {
		log.Printf("Warning: %d annotation issues in corpus %s", n, services.Config.Corpus.Name)
	}
	log.Printf("Corpus loaded: %d units", dataset.Len())
	return dataset, nil
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
