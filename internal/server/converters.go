package server

import (
	"math"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tttengine/internal/game"
	"tttengine/internal/session"
	"tttengine/internal/store"
)

// Request and response field names
const (
	fieldSessionID  = "session_id"
	fieldIndex      = "index"
	fieldBoardSize  = "board_size"
	fieldDifficulty = "difficulty"
	fieldMode       = "mode"
)

// stateToProto converts a session snapshot to its wire document
func stateToProto(st session.State) *structpb.Struct {
	board := make([]*structpb.Value, len(st.Board.Cells))
	for i, cell := range st.Board.Cells {
		board[i] = structpb.NewStringValue(markToString(cell))
	}

	moves := st.Moves()
	history := make([]*structpb.Value, len(moves))
	for i, m := range moves {
		history[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"ply":         structpb.NewNumberValue(float64(m.Ply)),
			"description": structpb.NewStringValue(m.Description),
			"current":     structpb.NewBoolValue(m.Current),
		}})
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID:      structpb.NewStringValue(st.ID),
		"version":           structpb.NewNumberValue(float64(st.Version)),
		fieldBoardSize:      structpb.NewNumberValue(float64(st.BoardSize)),
		"board":             structpb.NewListValue(&structpb.ListValue{Values: board}),
		"to_move":           structpb.NewStringValue(markToString(st.ToMove)),
		"status":            structpb.NewStringValue(st.Status.String()),
		"status_text":       structpb.NewStringValue(st.StatusText()),
		"winner":            structpb.NewStringValue(markToString(st.Winner)),
		"cursor":            structpb.NewNumberValue(float64(st.Cursor)),
		"history":           structpb.NewListValue(&structpb.ListValue{Values: history}),
		"ascending":         structpb.NewBoolValue(st.Ascending),
		"viewing_history":   structpb.NewBoolValue(st.ViewingHistory),
		"computer_thinking": structpb.NewBoolValue(st.ComputerThinking),
		fieldMode:           structpb.NewStringValue(st.Mode.String()),
		fieldDifficulty:     structpb.NewStringValue(st.Difficulty.String()),
		"show_stats":        structpb.NewBoolValue(st.ShowStats),
		"stats": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"x":     structpb.NewNumberValue(float64(st.Stats.X)),
			"o":     structpb.NewNumberValue(float64(st.Stats.O)),
			"draws": structpb.NewNumberValue(float64(st.Stats.Draws)),
			"total": structpb.NewNumberValue(float64(st.Stats.Total())),
		}}),
	}}
}

// tallyToProto converts an outcome tally to its wire document
func tallyToProto(t store.Tally) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"key":    structpb.NewStringValue(t.Key),
		"x_wins": structpb.NewNumberValue(float64(t.XWins)),
		"o_wins": structpb.NewNumberValue(float64(t.OWins)),
		"draws":  structpb.NewNumberValue(float64(t.Draws)),
		"total":  structpb.NewNumberValue(float64(t.Total())),
	}})
}

// markToString converts a Mark to its wire form; empty cells are ""
func markToString(m game.Mark) string {
	switch m {
	case game.MarkX:
		return "X"
	case game.MarkO:
		return "O"
	default:
		return ""
	}
}

// renderBoard draws the board as a bordered text grid with a status line
func renderBoard(st session.State) string {
	size := st.Board.Size
	separator := "+" + strings.Repeat("---+", size)

	var b strings.Builder
	b.WriteString(separator + "\n")
	for row := 0; row < size; row++ {
		cells := make([]string, size)
		for col := 0; col < size; col++ {
			mark, _ := st.Board.Get(row, col)
			cells[col] = mark.String()
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
		b.WriteString(separator + "\n")
	}
	b.WriteString(st.StatusText() + "\n")
	return b.String()
}

// stringField returns a string field, or "" when absent
func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

// intField returns an integral number field. Numbers sent as strings are
// accepted too since path parameters arrive that way.
func intField(req *structpb.Struct, name string) (int, bool, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, false, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
			return 0, true, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		return int(f), true, nil
	case *structpb.Value_StringValue:
		n, err := strconv.Atoi(strings.TrimSpace(k.StringValue))
		if err != nil {
			return 0, true, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		return n, true, nil
	default:
		return 0, true, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
}

// requiredInt is intField for fields that must be present
func requiredInt(req *structpb.Struct, name string) (int, error) {
	n, ok, err := intField(req, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return n, nil
}
