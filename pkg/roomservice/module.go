package roomservice

import (
	"log/slog"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/shalloville/shalloville/internal/config"
	"go.uber.org/fx"
)

type module_Params struct {
	fx.In

	Config *config.Config
}

func newTokenSigner(params module_Params) *TokenSigner {
	return NewTokenSigner(params.Config.APIKey, params.Config.APISecret, params.Config.TokenTTL)
}

type client_Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(params client_Params) RoomAPI {
	return NewClient(NewClientParams{
		URL:       params.Config.HTTPURL(),
		APIKey:    params.Config.APIKey,
		APISecret: params.Config.APISecret,
		Logger:    params.Logger.With(slog.String("component", "roomservice")),
	})
}

type dialer_Params struct {
	fx.In

	Config  *config.Config
	Signer  *TokenSigner
	Options []lksdk.ConnectOption
	Logger  *slog.Logger
}

func newDialer(params dialer_Params) Dialer {
	return NewDialer(NewDialerParams{
		URL:     params.Config.URL,
		Signer:  params.Signer,
		Options: params.Options,
		Logger:  params.Logger.With(slog.String("component", "rtc")),
	})
}

var Module = fx.Module("roomservice", fx.Provide(
	newTokenSigner,
	newClient,
	newDialer,
))
