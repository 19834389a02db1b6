package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/noah-isme/cbhub/internal/app"
	"github.com/noah-isme/cbhub/internal/cart"
	"github.com/noah-isme/cbhub/internal/checkout"
	"github.com/noah-isme/cbhub/internal/config"
	"github.com/noah-isme/cbhub/internal/messaging"
	"github.com/noah-isme/cbhub/internal/obs"
	"github.com/noah-isme/cbhub/internal/storefront"
	"github.com/noah-isme/cbhub/internal/verify"
	"github.com/noah-isme/cbhub/internal/widget"
)

func main() {
	useTUI := flag.Bool("tui", false, "full-screen interface instead of the line shell")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLoggerTo(os.Stderr, "console", cfg.Obs.LogLevel).With().Str("component", "storefront").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var storage cart.Storage = &cart.FileStorage{Path: cfg.CartFile}
	if cfg.RedisEnabled() {
		rdb, err := app.NewRedis(ctx, cfg.RedisURL, false, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		defer func() { _ = rdb.Close() }()
		storage = cart.RedisStorage{Client: rdb, Session: cfg.CartSession, TTL: 30 * 24 * time.Hour}
	}
	store, err := cart.Load(ctx, storage, cart.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("load cart")
	}

	in := bufio.NewReader(os.Stdin)
	chat := messaging.WhatsApp{Phone: cfg.MerchantWhatsApp, Merchant: cfg.MerchantName}
	prompt := &storefront.PromptOpener{}
	var opener widget.Opener = widget.ConsoleOpener{In: in, Out: os.Stdout}
	if *useTUI {
		opener = prompt
	}
	payments := widget.Adapter{PublicKey: cfg.PaystackPublicKey, Opener: opener}
	verifier := verify.NewClient(cfg.BackendURL, cfg.VerifyTimeout, logger)

	var renderer storefront.Renderer = storefront.RendererFunc(func(v storefront.View) {
		storefront.WriteView(os.Stdout, v)
	})
	if *useTUI {
		renderer = nil
	}
	shell := &storefront.Shell{
		Panel: storefront.NewPanel(store, chat, cfg.CurrencyCode, renderer),
		Checkout: func() *checkout.Flow {
			return checkout.New(store, payments, verifier, checkout.Options{
				Currency: cfg.CurrencyCode,
				Chat:     chat,
				Logger:   logger,
			})
		},
		In:  in,
		Out: os.Stdout,
	}
	if *useTUI {
		program := tea.NewProgram(storefront.NewTUI(ctx, shell), tea.WithContext(ctx), tea.WithAltScreen())
		prompt.Attach(program.Send)
		if _, err := program.Run(); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("storefront stopped")
		}
		return
	}
	if err := shell.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("storefront stopped")
	}
}
