package decorator

import (
	"context"
	"strings"
	"time"

	"github.com/architeacher/device-catalog/pkg/metrics"
)

const (
	commandsTotalKey    = "commands.total"
	commandsDurationKey = "commands.duration.seconds"
	queriesTotalKey     = "queries.total"
	queriesDurationKey  = "queries.duration.seconds"
)

type (
	commandMetricsDecorator[C Command, R any] struct {
		base   CommandHandler[C, R]
		client metrics.Client
	}

	queryMetricsDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		client metrics.Client
	}
)

func (d commandMetricsDecorator[C, R]) Handle(ctx context.Context, cmd C) (result R, err error) {
	start := time.Now()

	defer func() {
		record(ctx, d.client, commandsTotalKey, commandsDurationKey, strings.ToLower(generateActionName(cmd)), start, err)
	}()

	return d.base.Handle(ctx, cmd)
}

func (d queryMetricsDecorator[Q, R]) Execute(ctx context.Context, query Q) (result R, err error) {
	start := time.Now()

	defer func() {
		record(ctx, d.client, queriesTotalKey, queriesDurationKey, strings.ToLower(generateActionName(query)), start, err)
	}()

	return d.base.Execute(ctx, query)
}

func record(ctx context.Context, client metrics.Client, totalKey, durationKey, action string, start time.Time, err error) {
	if client == nil {
		return
	}

	actionAttr := metrics.AttrAction.String(action)

	client.Observe(ctx, durationKey, time.Since(start).Seconds(), actionAttr)
	client.Inc(ctx, totalKey, 1, actionAttr, metrics.Outcome(err))
}
