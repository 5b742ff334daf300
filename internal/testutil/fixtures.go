// Package testutil 提供测试辅助工具
package testutil

import (
	"strings"

	"github.com/ashwinyue/next-linker/internal/model"
)

// Sentence 由 "词/标识符" 构造句子，没有标识符的词为非实体
//
//	Sentence("Effi/Q2", "kam", ".")
func Sentence(words ...string) model.Sentence {
	tokens := make([]model.Token, 0, len(words))
	for _, w := range words {
		text, id := w, model.NoEntity
		if i := strings.LastIndex(w, "/"); i > 0 {
			text, id = w[:i], w[i+1:]
		}
		tokens = append(tokens, model.Token{Text: text, ID: id})
	}
	return model.NewSentence(tokens)
}

// NovelDataset 两个单元的小型评估池：
// train/fontane 中 Fontane 出现三次，Effi 只出现一次；
// test/schmidt 中两个不同实体共享表面形式 Schmidt
func NovelDataset() *model.Dataset {
	d := model.NewDataset()
	d.Add(model.PartitionTrain, "fontane", []model.Sentence{
		Sentence("Fontane/Q1", "schrieb", "."),
		Sentence("Fontane/Q1", "reiste", "."),
		Sentence("Fontane/Q1", "lachte", "."),
		Sentence("Effi/Q2", "kam", "."),
	})
	d.Add(model.PartitionTest, "schmidt", []model.Sentence{
		Sentence("Schmidt/Q5", "regierte", "."),
		Sentence("Schmidt/Q5", "rauchte", "."),
		Sentence("Schmidt/Q5", "kam", "."),
		Sentence("Schmidt/Q6", "kochte", "."),
		Sentence("Schmidt/Q6", "backte", "."),
		Sentence("Schmidt/Q6", "ging", "."),
	})
	return d
}
