package service

import (
	"io"
	"log/slog"
	"os"

	"github.com/shalloville/shalloville/internal/config"
	"go.uber.org/fx"
)

type logger_Params struct {
	fx.In

	Config *config.Config
}

var loggerWriter io.Writer = os.Stdout

func logger(params logger_Params) *slog.Logger {
	return slog.New(slog.NewJSONHandler(loggerWriter, &slog.HandlerOptions{
		AddSource: false,
		Level:     params.Config.LogLevel,
	}))
}

var LoggerModule = fx.Module("logger", fx.Provide(
	logger,
))
