package worker

// vencimiento_cron.go
// Background goroutine that periodically marks overdue pagos. The due date
// passing never transitions a pago by itself; this sweep is the only path
// to estado vencido.

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const vencimientoTickInterval = 1 * time.Hour

// VencidosMarcador is the slice of the payment service the sweep needs.
type VencidosMarcador interface {
	MarcarVencidos(ctx context.Context) (int, error)
}

// StartVencimientoCron launches a background goroutine that runs the overdue
// sweep once at startup and then on every tick. It respects the context for
// graceful shutdown.
func StartVencimientoCron(ctx context.Context, svc VencidosMarcador) {
	go func() {
		ticker := time.NewTicker(vencimientoTickInterval)
		defer ticker.Stop()

		log.Info().Msg("vencimiento_cron: started")
		sweep(ctx, svc)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("vencimiento_cron: shutting down")
				return
			case <-ticker.C:
				sweep(ctx, svc)
			}
		}
	}()
}

func sweep(ctx context.Context, svc VencidosMarcador) {
	marcados, err := svc.MarcarVencidos(ctx)
	if err != nil {
		log.Error().Err(err).Msg("vencimiento_cron: sweep failed")
		return
	}
	if marcados > 0 {
		log.Info().Int("marcados", marcados).Msg("vencimiento_cron: pagos vencidos")
	}
}
