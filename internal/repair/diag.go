package repair

import "fmt"

// Level is the severity of a diagnostic event.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarn
)

// String returns a human-readable level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return fmt.Sprintf("level(%d)", l)
	}
}

// Diag is one structured diagnostic event emitted by a repair pass. The core
// never writes to a console; callers decide how events are rendered.
type Diag struct {
	Level   Level
	Pass    string
	Message string
}

// recorder accumulates diagnostics while a model is being repaired.
type recorder struct {
	events []Diag
}

func (rec *recorder) infof(pass, format string, args ...any) {
	rec.events = append(rec.events, Diag{Level: LevelInfo, Pass: pass, Message: fmt.Sprintf(format, args...)})
}

func (rec *recorder) warnf(pass, format string, args ...any) {
	rec.events = append(rec.events, Diag{Level: LevelWarn, Pass: pass, Message: fmt.Sprintf(format, args...)})
}
