package vs

// Control node names. They are resolved before any kernel backend.
const (
	NameFork  = "fork"
	NameSwap  = "swap"
	NameShift = "shift"
	NamePrev  = "prev"
)

// Attr holds the attribute overrides of a pipeline entry. A value is
// either a literal (a number or a slice of numbers) that overwrites the
// start of the attribute's default, or a string naming a dynamic variable
// or constant that feeds the attribute's buffer.
type Attr map[string]any

// NodeSpec is one pipeline entry.
type NodeSpec struct {
	Name string
	Attr Attr
}

// Script is a declarative effect pipeline: nodes in execution order,
// constants written once at compile time, and dynamic variables evaluated
// every frame.
type Script struct {
	Pipeline  []NodeSpec
	Constants map[string][]float32
	Variables map[string]VariableSpec
}

// NewScript returns an empty script.
func NewScript() *Script {
	return &Script{
		Constants: make(map[string][]float32),
		Variables: make(map[string]VariableSpec),
	}
}

// Append adds a node entry and returns the script for chaining.
func (s *Script) Append(name string, attr Attr) *Script {
	s.Pipeline = append(s.Pipeline, NodeSpec{Name: name, Attr: attr})
	return s
}

// Fork appends a fork control node.
func (s *Script) Fork() *Script { return s.Append(NameFork, nil) }

// Swap appends a swap control node.
func (s *Script) Swap() *Script { return s.Append(NameSwap, nil) }

// Shift appends a shift control node.
func (s *Script) Shift() *Script { return s.Append(NameShift, nil) }

// Prev appends a node pushing the newest entry of the previous list.
func (s *Script) Prev() *Script { return s.Append(NamePrev, nil) }

// SetConstant sets the value written once into the buffers bound to key.
func (s *Script) SetConstant(key string, values ...float32) *Script {
	if s.Constants == nil {
		s.Constants = make(map[string][]float32)
	}
	s.Constants[key] = values
	return s
}

// SetVariable declares the dynamic variable feeding key.
func (s *Script) SetVariable(key string, spec VariableSpec) *Script {
	if s.Variables == nil {
		s.Variables = make(map[string]VariableSpec)
	}
	s.Variables[key] = spec
	return s
}

// Len returns the number of pipeline entries.
func (s *Script) Len() int { return len(s.Pipeline) }
