// Package callback 提供 Eino Callback 日志支持，记录 Embedding 组件的调用
package callback

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
)

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口；错误总是记录，开始/结束事件只在调试模式下记录
type Logger struct {
	EnableDebug bool
}

// NewLogger 创建日志回调处理器
func NewLogger(enableDebug bool) *Logger {
	return &Logger{EnableDebug: enableDebug}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if l.EnableDebug {
		log.Printf("[Eino] OnStart: name=%s type=%s component=%s %s",
			info.Name, info.Type, info.Component, describeInput(input))
	}
	return ctx
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if l.EnableDebug {
		log.Printf("[Eino] OnEnd: name=%s type=%s component=%s %s",
			info.Name, info.Type, info.Component, describeOutput(output))
	}
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	log.Printf("[Eino] Error: name=%s type=%s component=%s error=%v",
		info.Name, info.Type, info.Component, err)
	return ctx
}

// OnStartWithStreamInput Embedding 组件不产生流，只返回 ctx
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

// OnEndWithStreamOutput Embedding 组件不产生流，只返回 ctx
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

// describeInput 只记录文本数量，避免日志过大
func describeInput(input callbacks.CallbackInput) string {
	in := embedding.ConvCallbackInput(input)
	if in == nil {
		return "input=<nil>"
	}
	return fmt.Sprintf("texts=%d", len(in.Texts))
}

// describeOutput 记录向量数量和维度
func describeOutput(output callbacks.CallbackOutput) string {
	out := embedding.ConvCallbackOutput(output)
	if out == nil {
		return "output=<nil>"
	}
	dim := 0
	if len(out.Embeddings) > 0 {
		dim = len(out.Embeddings[0])
	}
	return fmt.Sprintf("vectors=%d dim=%d", len(out.Embeddings), dim)
}

var setupOnce sync.Once

// SetupGlobalCallbacks 设置全局回调（只注册一次）
func SetupGlobalCallbacks(enableDebug bool) {
	setupOnce.Do(func() {
		callbacks.AppendGlobalHandlers(NewLogger(enableDebug))
		log.Printf("[Eino] Global callbacks registered (debug=%v)", enableDebug)
	})
}
