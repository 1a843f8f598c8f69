package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tailored-agentic-units/mealplanner/server"
)

func (c *ServeCmd) Run(g *Globals) error {
	rt, err := g.load()
	if err != nil {
		return err
	}
	defer rt.closer.Close()

	k, err := rt.kernel()
	if err != nil {
		return err
	}
	defer k.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.logger.Info("serving", "addr", c.Addr, "service", server.ServiceName)
	err = server.New(k, rt.observer).ListenAndServe(ctx, c.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
