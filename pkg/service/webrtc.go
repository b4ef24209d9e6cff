package service

import (
	"log/slog"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"go.uber.org/fx"
)

type connectOptions_Params struct {
	fx.In

	Logger *slog.Logger
}

// Subscriptions are explicit; remote tracks are requested as they are published.
func connectOptions(params connectOptions_Params) ([]lksdk.ConnectOption, error) {
	pli, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, err
	}

	params.Logger.Debug("rtc connect options", slog.Bool("auto_subscribe", false))

	return []lksdk.ConnectOption{
		lksdk.WithAutoSubscribe(false),
		lksdk.WithInterceptors([]interceptor.Factory{pli}),
	}, nil
}

var WebrtcModule = fx.Module("webrtc", fx.Provide(
	connectOptions,
))
