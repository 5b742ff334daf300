package model

import (
	"fmt"
	"sort"
)

// Partition 数据集划分
type Partition string

const (
	PartitionTrain Partition = "train"
	PartitionDev   Partition = "dev"
	PartitionTest  Partition = "test"
)

// Partitions 默认的划分加载顺序
var Partitions = []Partition{PartitionTrain, PartitionDev, PartitionTest}

// Unit 评估单元（一部小说 / 一篇文档），独立构建知识库
type Unit struct {
	Key       string     `json:"key"`  // partition/name，合并后唯一
	Name      string     `json:"name"` // 原始单元名
	Partition Partition  `json:"partition"`
	Sentences []Sentence `json:"sentences"`
}

// MentionCount 单元内提及数量
func (u *Unit) MentionCount() int {
	n := 0
	for _, s := range u.Sentences {
		n += len(s.Mentions())
	}
	return n
}

// UnitKey 生成合并后的单元键
func UnitKey(p Partition, name string) string {
	return string(p) + "/" + name
}

// Dataset 三个划分合并成的评估池
type Dataset struct {
	units map[string]*Unit
}

// NewDataset 创建空数据集
func NewDataset() *Dataset {
	return &Dataset{units: make(map[string]*Unit)}
}

// Add 加入一个单元；同一划分内同名单元的句子会被追加
func (d *Dataset) Add(p Partition, name string, sentences []Sentence) *Unit {
	key := UnitKey(p, name)
	u, ok := d.units[key]
	if !ok {
		u = &Unit{Key: key, Name: name, Partition: p}
		d.units[key] = u
	}
	u.Sentences = append(u.Sentences, sentences...)
	return u
}

// Get 按键获取单元
func (d *Dataset) Get(key string) (*Unit, bool) {
	u, ok := d.units[key]
	return u, ok
}

// Units 按键排序返回所有单元
func (d *Dataset) Units() []*Unit {
	keys := make([]string, 0, len(d.units))
	for k := range d.units {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	units := make([]*Unit, 0, len(keys))
	for _, k := range keys {
		units = append(units, d.units[k])
	}
	return units
}

// Len 单元数量
func (d *Dataset) Len() int {
	return len(d.units)
}

// Subset 按单元键筛选；keys 为空时返回自身
func (d *Dataset) Subset(keys []string) (*Dataset, error) {
	if len(keys) == 0 {
		return d, nil
	}
	sub := NewDataset()
	for _, k := range keys {
		u, ok := d.units[k]
		if !ok {
			return nil, fmt.Errorf("unit not found: %s", k)
		}
		sub.units[k] = u
	}
	return sub, nil
}
