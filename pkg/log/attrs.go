package log

import "log/slog"

func TaskID[T ~string](id T) slog.Attr {
	return slog.String("task_id", string(id))
}

func Workflow[T ~string](name T) slog.Attr {
	return slog.String("workflow", string(name))
}

func StepID[T ~string](id T) slog.Attr {
	return slog.String("step_id", string(id))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
