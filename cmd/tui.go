package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/lurchfeed/internal/consumer"
	"github.com/zjrosen/lurchfeed/internal/log"
	"github.com/zjrosen/lurchfeed/internal/pubsub"
	"github.com/zjrosen/lurchfeed/internal/tui"
)

// runTUI runs the download in the background while a Bubble Tea program
// renders its updates. ctrl+c in the program cancels the download.
func runTUI(ctx context.Context, req consumer.Request, opts ...consumer.RunOption) (consumer.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	broker := pubsub.NewBroker[consumer.Update]()
	defer broker.Close()

	// Subscribe before the run starts so no early event is missed.
	listener := pubsub.NewContinuousListener(ctx, broker)
	model := tui.New(listener, cancel).
		WithURL(req.Args.URL).
		WithLogs(log.NewListener(ctx))
	p := tea.NewProgram(model, tea.WithContext(ctx))

	type outcome struct {
		res consumer.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		opts = append(opts, consumer.WithUpdates(broker))
		res, err := consumer.Run(ctx, req, opts...)
		done <- outcome{res, err}
		p.Send(tui.RunDoneMsg{Result: res, Err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-done
		return consumer.Result{}, fmt.Errorf("running program: %w", err)
	}

	cancel()
	out := <-done
	return out.res, out.err
}
