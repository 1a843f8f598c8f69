package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tailored-agentic-units/mealplanner/capability"
	"github.com/tailored-agentic-units/mealplanner/capability/natscap"
)

func (c *ResponderCmd) Run(g *Globals) error {
	rt, err := g.load()
	if err != nil {
		return err
	}
	defer rt.closer.Close()

	url := c.NATS
	if url == "" {
		url = rt.cfg.Capability.NATSURL
	}
	if url == "" {
		return errors.New("no NATS URL: pass --nats or set capability.nats_url")
	}

	catalog, err := capability.LoadCatalog(c.Catalog)
	if err != nil {
		return err
	}
	timeout, err := rt.cfg.Capability.TimeoutDuration()
	if err != nil {
		return err
	}

	client, err := natscap.Connect(url, rt.cfg.Capability.Subject)
	if err != nil {
		return err
	}
	defer client.Close()

	subs, err := natscap.Serve(client.Conn(), rt.cfg.Capability.Subject, natscap.Providers{
		Verifier: catalog,
		Timeout:  timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()

	rt.logger.Info("responding",
		"subject", natscap.Subject(rt.cfg.Capability.Subject, natscap.SubjectVerify),
		"recipes", catalog.Len())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}
