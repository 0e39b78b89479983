package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogs/*.yaml
var builtin embed.FS

var (
	ErrQuestionNotFound = errors.New("question not found in catalog")
	ErrUnknownCatalog   = errors.New("unknown built-in catalog")
)

// Question 一个引导问题，加载后不可变
type Question struct {
	Key      string   `yaml:"key" json:"key"`
	Prompt   string   `yaml:"prompt" json:"prompt"`
	Options  []string `yaml:"options,omitempty" json:"options,omitempty"`
	Required bool     `yaml:"required" json:"required"`
}

// HasOptions 是否为固定选项题
func (q Question) HasOptions() bool {
	return len(q.Options) > 0
}

// AllowsOption 检查答案是否在固定选项中
func (q Question) AllowsOption(answer string) bool {
	for _, opt := range q.Options {
		if opt == answer {
			return true
		}
	}
	return false
}

type file struct {
	Version   int        `yaml:"version"`
	Questions []Question `yaml:"questions"`
}

// Catalog 有序、只读的问题目录
type Catalog struct {
	name      string
	questions []Question
	index     map[string]int
}

// Load 按优先级加载目录：外部文件路径 > 内置目录名称
func Load(name, path string) (*Catalog, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
		}
		return Parse(path, data)
	}

	return LoadBuiltin(name)
}

// LoadBuiltin 加载内置目录（default、testing）
func LoadBuiltin(name string) (*Catalog, error) {
	data, err := builtin.ReadFile("catalogs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCatalog, name)
	}
	return Parse(name, data)
}

// MustLoadBuiltin 供测试和初始化使用
func MustLoadBuiltin(name string) *Catalog {
	c, err := LoadBuiltin(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse 解析 YAML 并校验目录
func Parse(name string, data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", name, err)
	}
	return New(name, f.Questions)
}

// New 从问题列表构建目录
func New(name string, questions []Question) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("catalog %s has no questions", name)
	}

	c := &Catalog{
		name:      name,
		questions: make([]Question, 0, len(questions)),
		index:     make(map[string]int, len(questions)),
	}

	for i, q := range questions {
		q.Key = strings.TrimSpace(q.Key)
		if q.Key == "" {
			return nil, fmt.Errorf("catalog %s: question %d has an empty key", name, i)
		}
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("catalog %s: question %q has an empty prompt", name, q.Key)
		}
		if _, dup := c.index[q.Key]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate question key %q", name, q.Key)
		}

		seen := make(map[string]struct{}, len(q.Options))
		for _, opt := range q.Options {
			if _, dup := seen[opt]; dup {
				return nil, fmt.Errorf("catalog %s: question %q has duplicate option %q", name, q.Key, opt)
			}
			seen[opt] = struct{}{}
		}

		// 选项切片单独拷贝，外部修改不会影响目录
		q.Options = append([]string(nil), q.Options...)
		if len(q.Options) == 0 {
			q.Options = nil
		}

		c.index[q.Key] = len(c.questions)
		c.questions = append(c.questions, q)
	}

	return c, nil
}

func (c *Catalog) Name() string {
	return c.name
}

func (c *Catalog) Len() int {
	return len(c.questions)
}

// List 返回目录顺序的问题副本
func (c *Catalog) List() []Question {
	out := make([]Question, len(c.questions))
	for i, q := range c.questions {
		out[i] = q.clone()
	}
	return out
}

func (c *Catalog) ByKey(key string) (Question, error) {
	i, ok := c.index[key]
	if !ok {
		return Question{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, key)
	}
	return c.questions[i].clone(), nil
}

func (c *Catalog) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

func (c *Catalog) First() Question {
	return c.questions[0].clone()
}

// Next 返回 key 之后的问题；key 是最后一题时 ok 为 false
func (c *Catalog) Next(key string) (Question, bool, error) {
	i, found := c.index[key]
	if !found {
		return Question{}, false, fmt.Errorf("%w: %s", ErrQuestionNotFound, key)
	}
	if i+1 >= len(c.questions) {
		return Question{}, false, nil
	}
	return c.questions[i+1].clone(), true, nil
}

// Position 返回 key 在目录中的下标
func (c *Catalog) Position(key string) (int, bool) {
	i, ok := c.index[key]
	return i, ok
}

func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.questions))
	for i, q := range c.questions {
		keys[i] = q.Key
	}
	return keys
}

func (c *Catalog) RequiredKeys() []string {
	keys := make([]string, 0, len(c.questions))
	for _, q := range c.questions {
		if q.Required {
			keys = append(keys, q.Key)
		}
	}
	return keys
}

func (q Question) clone() Question {
	if q.Options != nil {
		q.Options = append([]string(nil), q.Options...)
	}
	return q
}
