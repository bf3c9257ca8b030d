package netemu

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FilterEnv 过滤表达式可见的变量
//
//	Opcode == 0x0A && Section > 1
//	Name in ["EE_PATCH", "REVISION"]
type FilterEnv struct {
	Opcode  int    `expr:"Opcode"`
	Name    string `expr:"Name"`
	Offset  int    `expr:"Offset"`
	Length  int    `expr:"Length"`
	Kind    string `expr:"Kind"`
	Section int    `expr:"Section"` // 从 1 开始
}

// ErrInvalidFilter 过滤表达式无法编译
var ErrInvalidFilter = errors.New("invalid filter expression")

// Filter 编译后的命令过滤表达式
type Filter struct {
	source  string
	program *vm.Program
}

// CompileFilter 编译过滤表达式，空串返回 nil (不过滤)
func CompileFilter(source string) (*Filter, error) {
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(FilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidFilter, source, err)
	}
	return &Filter{source: source, program: program}, nil
}

func (f *Filter) String() string { return f.source }

// Match 判断某次命令出现是否保留；nil 过滤器保留全部
func (f *Filter) Match(c *Catalog, occ Occurrence, section int) (bool, error) {
	if f == nil {
		return true, nil
	}
	env := FilterEnv{
		Opcode:  int(occ.Opcode),
		Name:    c.Name(occ.Opcode),
		Offset:  int(occ.Offset),
		Length:  occ.Length,
		Section: section,
	}
	if occ.Params != nil {
		env.Kind = occ.Params.Kind().String()
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("%w: 执行失败: %w", ErrInvalidFilter, err)
	}
	matched, _ := out.(bool)
	return matched, nil
}

// Apply 对各段应用过滤器，过滤后为空的段被移除
func (f *Filter) Apply(c *Catalog, sections []Section) ([]Section, error) {
	if f == nil {
		return sections, nil
	}
	out := make([]Section, 0, len(sections))
	for i, s := range sections {
		kept := make([]Occurrence, 0, len(s.Occurrences))
		for _, occ := range s.Occurrences {
			ok, err := f.Match(c, occ, i+1)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, occ)
			}
		}
		if len(kept) > 0 {
			out = append(out, Section{Occurrences: kept, EndOffset: s.EndOffset})
		}
	}
	return out, nil
}
