package cfg

import (
	"encoding/json"
	"fmt"
	"io"
)

// Wire format: one JSON document per CFG. Every instruction and terminator
// carries an "op" discriminator next to its payload, so readers in other
// tools can dispatch without knowing the full variant set up front.
type wireCFG struct {
	Symbol string      `json:"symbol"`
	Blocks []wireBlock `json:"blocks"`
}

type wireBlock struct {
	ID       int           `json:"id"`
	Bindings []wireBinding `json:"bindings"`
	Term     wireNode      `json:"term"`
}

type wireBinding struct {
	Dest  string   `json:"dest"`
	Instr wireNode `json:"instr"`
}

type wireNode struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

// serializer is the Visitor that lowers a CFG into its wire form.
type serializer struct {
	out   wireCFG
	block *wireBlock
	err   error
}

func (s *serializer) EnterBlock(b *Block) {
	s.out.Blocks = append(s.out.Blocks, wireBlock{ID: b.ID, Bindings: []wireBinding{}})
	s.block = &s.out.Blocks[len(s.out.Blocks)-1]
}

func (s *serializer) VisitBinding(bind Binding) {
	if s.err != nil {
		return
	}
	node, err := encodeNode(bind.Instr.op(), bind.Instr)
	if err != nil {
		s.err = err
		return
	}
	s.block.Bindings = append(s.block.Bindings, wireBinding{Dest: bind.Dest, Instr: node})
}

func (s *serializer) VisitTerminator(t Terminator) {
	if s.err != nil {
		return
	}
	node, err := encodeNode(t.term(), t)
	if err != nil {
		s.err = err
		return
	}
	s.block.Term = node
}

func encodeNode(op string, payload any) (wireNode, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return wireNode{}, fmt.Errorf("cfg: encoding %q node: %w", op, err)
	}
	return wireNode{Op: op, Payload: raw}, nil
}

// Serialize writes g to w in the wire format.
func Serialize(w io.Writer, g *CFG) error {
	s := &serializer{out: wireCFG{Symbol: g.Symbol, Blocks: []wireBlock{}}}
	Walk(g, s)
	if s.err != nil {
		return s.err
	}
	return json.NewEncoder(w).Encode(&s.out)
}

// Deserialize reads one CFG from r. Unknown op tags are an error: the wire
// format is versioned by its variant set, and silently dropping instructions
// would corrupt the graph.
func Deserialize(r io.Reader) (*CFG, error) {
	var in wireCFG
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("cfg: decoding graph: %w", err)
	}

	g := &CFG{Symbol: in.Symbol}
	for _, wb := range in.Blocks {
		b := &Block{ID: wb.ID}
		for _, wbind := range wb.Bindings {
			instr, err := decodeInstruction(wbind.Instr)
			if err != nil {
				return nil, err
			}
			b.Bindings = append(b.Bindings, Binding{Dest: wbind.Dest, Instr: instr})
		}
		term, err := decodeTerminator(wb.Term)
		if err != nil {
			return nil, err
		}
		b.Term = term
		g.Blocks = append(g.Blocks, b)
	}
	return g, nil
}

func decodeInstruction(node wireNode) (Instruction, error) {
	var instr Instruction
	switch node.Op {
	case "ident":
		instr = &Ident{}
	case "int":
		instr = &IntLit{}
	case "str":
		instr = &StrLit{}
	case "send":
		instr = &Send{}
	case "cast":
		instr = &Cast{}
	default:
		return nil, fmt.Errorf("cfg: unknown instruction op %q", node.Op)
	}
	if err := json.Unmarshal(node.Payload, instr); err != nil {
		return nil, fmt.Errorf("cfg: decoding %q node: %w", node.Op, err)
	}
	return deref(instr).(Instruction), nil
}

func decodeTerminator(node wireNode) (Terminator, error) {
	var term Terminator
	switch node.Op {
	case "branch":
		term = &Branch{}
	case "jump":
		term = &Jump{}
	case "ret":
		term = &Ret{}
	default:
		return nil, fmt.Errorf("cfg: unknown terminator op %q", node.Op)
	}
	if err := json.Unmarshal(node.Payload, term); err != nil {
		return nil, fmt.Errorf("cfg: decoding %q node: %w", node.Op, err)
	}
	return deref(term).(Terminator), nil
}

// deref unwraps the pointer used for unmarshalling so graphs hold plain
// values and compare with ==.
func deref(v any) any {
	switch p := v.(type) {
	case *Ident:
		return *p
	case *IntLit:
		return *p
	case *StrLit:
		return *p
	case *Send:
		return *p
	case *Cast:
		return *p
	case *Branch:
		return *p
	case *Jump:
		return *p
	case *Ret:
		return *p
	default:
		return v
	}
}
