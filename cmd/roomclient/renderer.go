package main

import (
	"log/slog"

	"github.com/shalloville/shalloville/internal/motion"
	"github.com/shalloville/shalloville/internal/reconcile"
	"go.uber.org/fx"
)

// headlessRenderer stands in for a scene graph and logs what it would draw.
type headlessRenderer struct {
	logger *slog.Logger
	next   reconcile.AvatarRef
	owners map[reconcile.AvatarRef]string
}

func (r *headlessRenderer) Spawn(p *reconcile.Participant) reconcile.AvatarRef {
	r.next++
	r.owners[r.next] = p.ID

	pos := p.Motion.Position()
	r.logger.Info("spawn",
		slog.String("participant", p.ID),
		slog.String("name", p.DisplayName),
		slog.Group("position", slog.Float64("x", pos.X), slog.Float64("y", pos.Y)),
	)
	return r.next
}

func (r *headlessRenderer) Despawn(ref reconcile.AvatarRef) {
	r.logger.Info("despawn", slog.String("participant", r.owners[ref]))
	delete(r.owners, ref)
}

func (r *headlessRenderer) PatchAppearance(ref reconcile.AvatarRef, appearance reconcile.Appearance) {
	r.logger.Debug("appearance",
		slog.String("participant", r.owners[ref]),
		slog.Any("attributes", appearance.Attributes("")),
	)
}

func (r *headlessRenderer) Place(ref reconcile.AvatarRef, frame motion.Frame) {
	if !frame.AnimationChanged {
		return
	}
	r.logger.Debug("animation",
		slog.String("participant", r.owners[ref]),
		slog.String("animation", frame.Animation),
		slog.Float64("scale_x", frame.ScaleX),
	)
}

func (r *headlessRenderer) ShowVideo(participant string, scale float64) {
	r.logger.Info("video shown", slog.String("participant", participant), slog.Float64("scale", scale))
}

func (r *headlessRenderer) HideVideo(participant string) {
	r.logger.Info("video hidden", slog.String("participant", participant))
}

type newHeadlessRenderer_Params struct {
	fx.In

	Logger *slog.Logger
}

func newHeadlessRenderer(params newHeadlessRenderer_Params) *headlessRenderer {
	return &headlessRenderer{
		logger: params.Logger.With(slog.String("component", "renderer")),
		owners: make(map[reconcile.AvatarRef]string),
	}
}
