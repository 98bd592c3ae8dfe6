package recognize

import (
	"fmt"
	"strings"
)

// Registry 是识别服务的只读注册表（按 name 索引，并保留注册顺序用于回退）。
type Registry struct {
	byName map[string]Recognizer
	order  []string
}

func NewRegistry(recognizers ...Recognizer) (Registry, error) {
	byName := make(map[string]Recognizer, len(recognizers))
	order := make([]string, 0, len(recognizers))
	for _, r := range recognizers {
		if r == nil {
			return Registry{}, fmt.Errorf("recognizer 不能为空")
		}
		name := normName(r.Name())
		if name == "" {
			return Registry{}, fmt.Errorf("recognizer.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 recognizer：%q", name)
		}
		byName[name] = r
		order = append(order, name)
	}
	return Registry{byName: byName, order: order}, nil
}

func (r Registry) Get(name string) (Recognizer, bool) {
	if r.byName == nil {
		return nil, false
	}
	p, ok := r.byName[normName(name)]
	return p, ok
}

// Names 返回注册顺序。
func (r Registry) Names() []string { return append([]string(nil), r.order...) }

func (r Registry) Len() int { return len(r.order) }

// Accepts 表示是否至少有一个已注册的服务能处理该 MIME。
func (r Registry) Accepts(mime string) bool {
	for _, name := range r.order {
		if r.byName[name].Accepts(mime) {
			return true
		}
	}
	return false
}

func normName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
