// cmd/strand/serve.go
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"strand/internal/cursor"
	"strand/internal/database"
	"strand/internal/expr"
	"strand/internal/record"
	"strand/internal/table"
	"strand/internal/value"
)

// op is one postfix instruction in a wire-format query program.
type op struct {
	Op     string          `json:"op"`
	Column string          `json:"column,omitempty"`
	Kind   string          `json:"kind,omitempty"`  // "constant" atoms: bool, int, float, text
	Value  json.RawMessage `json:"value,omitempty"` // "constant" atoms
}

// queryRequest is one text frame a client sends to /query.
type queryRequest struct {
	Table   string `json:"table"`
	Program []op   `json:"program"`
	Offset  uint64 `json:"offset"`
	Limit   uint64 `json:"limit"`
	Order   string `json:"order"` // "regular" (default) or "reverse"
}

// rowFrame is one result row a server frame carries back.
type rowFrame struct {
	RowID   int64             `json:"row_id"`
	Score   float64           `json:"score"`
	Columns map[string]string `json:"columns"`
}

// resultFrame wraps either an error or a batch of rows, plus a final
// "done" marker so the client knows the stream for one request ended.
type resultFrame struct {
	Error string     `json:"error,omitempty"`
	Rows  []rowFrame `json:"rows,omitempty"`
	Done  bool       `json:"done,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeCommand implements "strand serve": optionally bulk-load one table
// the way "strand load" does, then accept websocket connections that each
// submit postfix query programs against it.
func ServeCommand(args []string) error {
	flags := parseFlags(args)
	addr := flags["addr"]
	if addr == "" {
		addr = ":8080"
	}

	db := database.New()
	if dsn, query, tableName := flags["dsn"], flags["query"], flags["table"]; dsn != "" {
		n, err := loadInto(db, dsn, query, tableName, flags["key"])
		if err != nil {
			return fmt.Errorf("preload: %w", err)
		}
		fmt.Printf("preloaded %d row(s) into table %q\n", n, tableName)
	}

	srv := &server{db: db}
	mux := http.NewServeMux()
	mux.HandleFunc("/query", srv.handleQuery)

	fmt.Printf("strand serve listening on %s (ws endpoint: /query)\n", addr)
	return http.ListenAndServe(addr, mux)
}

// server holds the single in-memory Database every connection queries.
// The engine's core itself stays single-threaded and synchronous (per
// its concurrency model); mu only serializes concurrent websocket
// connections' access to that one shared Database.
type server struct {
	db *database.Database
	mu sync.Mutex
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req queryRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		frame := s.run(req)
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
		conn.WriteJSON(resultFrame{Done: true})
	}
}

func (s *server) run(req queryRequest) resultFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	tb, ok := s.db.FindTable(req.Table)
	if !ok {
		return resultFrame{Error: fmt.Sprintf("no table named %q", req.Table)}
	}

	e, err := buildExpression(tb, req.Program)
	if err != nil {
		return resultFrame{Error: err.Error()}
	}

	order := cursor.Regular
	if req.Order == "reverse" {
		order = cursor.Reverse
	}
	c := tb.CreateCursor(cursor.Options{Limit: ^uint64(0), Order: order})
	all := cursor.ReadAll(c)

	limit := req.Limit
	if limit == 0 {
		limit = ^uint64(0)
	}
	filtered := e.Filter(all, req.Offset, limit)

	return resultFrame{Rows: renderRows(tb, filtered)}
}

func renderRows(tb *table.Table, records record.Array) []rowFrame {
	out := make([]rowFrame, len(records))
	for i, rec := range records {
		cols := make(map[string]string, tb.NumColumns())
		for ci := 0; ci < tb.NumColumns(); ci++ {
			col, _ := tb.GetColumn(ci)
			cols[col.Name()] = renderDatum(col.Get(rec.RowID))
		}
		out[i] = rowFrame{RowID: rec.RowID, Score: rec.Score, Columns: cols}
	}
	return out
}

// buildExpression replays a wire-format postfix program through a Builder.
func buildExpression(tb *table.Table, program []op) (*expr.Expression, error) {
	b := expr.NewBuilder(tb)
	for _, instr := range program {
		var err error
		switch instr.Op {
		case "row_id":
			b.RowID()
		case "score":
			b.Score()
		case "column":
			err = b.Column(instr.Column)
		case "constant":
			var d value.Datum
			d, err = decodeConstant(instr.Kind, instr.Value)
			if err == nil {
				b.Constant(d)
			}
		case "begin_sub":
			b.BeginSubexpression()
		case "end_sub":
			err = b.EndSubexpression()
		case "not":
			err = b.Not()
		case "bit_not":
			err = b.BitNot()
		case "pos":
			err = b.Pos()
		case "neg":
			err = b.Neg()
		case "and":
			err = b.And()
		case "or":
			err = b.Or()
		case "xor":
			err = b.Xor()
		case "eq":
			err = b.Eq()
		case "neq":
			err = b.Neq()
		case "lt":
			err = b.Lt()
		case "le":
			err = b.Le()
		case "gt":
			err = b.Gt()
		case "ge":
			err = b.Ge()
		case "bit_and":
			err = b.BitAnd()
		case "bit_or":
			err = b.BitOr()
		case "bit_xor":
			err = b.BitXor()
		case "shl":
			err = b.Shl()
		case "shr":
			err = b.Shr()
		case "shr_logical":
			err = b.ShrLogical()
		case "add":
			err = b.Add()
		case "sub":
			err = b.Sub()
		case "mul":
			err = b.Mul()
		case "div":
			err = b.Div()
		case "mod":
			err = b.Mod()
		default:
			err = fmt.Errorf("unknown program op %q", instr.Op)
		}
		if err != nil {
			return nil, err
		}
	}
	return b.Release()
}

// renderDatum stringifies any scalar datum for the wire frame; N/A renders
// as "N/A", GeoPoint and vector kinds render as their kind name since wire clients only ever
// query the scalar Text columns "strand load" creates today.
func renderDatum(d value.Datum) string {
	if d.IsNA() {
		return "N/A"
	}
	switch d.Kind() {
	case value.KindBool:
		if d.Bool().IsTrue() {
			return "true"
		}
		return "false"
	case value.KindInt:
		return fmt.Sprintf("%d", int64(d.Int()))
	case value.KindFloat:
		return fmt.Sprintf("%g", float64(d.Float()))
	case value.KindText:
		return d.Text().String()
	default:
		return d.Kind().String()
	}
}

func decodeConstant(kind string, raw json.RawMessage) (value.Datum, error) {
	switch kind {
	case "bool":
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return value.Datum{}, err
		}
		if v {
			return value.FromBool(value.BoolTrue), nil
		}
		return value.FromBool(value.BoolFalse), nil
	case "int":
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return value.Datum{}, err
		}
		return value.FromInt(value.Int(v)), nil
	case "float":
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return value.Datum{}, err
		}
		return value.FromFloat(value.Float(v)), nil
	case "text":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return value.Datum{}, err
		}
		return value.FromText(value.TextFromString(v)), nil
	default:
		return value.Datum{}, fmt.Errorf("unknown constant kind %q", kind)
	}
}
