// cmd/fusasm/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/config"
	"github.com/tamzrod/fusa-sm/internal/crc"
	"github.com/tamzrod/fusa-sm/internal/dispatch"
	"github.com/tamzrod/fusa-sm/internal/lmm"
	"github.com/tamzrod/fusa-sm/internal/supervisor"
	"github.com/tamzrod/fusa-sm/internal/vfccu"
	"github.com/tamzrod/fusa-sm/internal/writer"
)

func main() {
	level := flag.String("log-level", "info", "log level (debug|info|warn|error)")
	autoAck := flag.Bool("auto-ack", true, "acknowledge graceful transitions immediately")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: fusasm [flags] <config.yaml>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := logrus.New()
	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		logger.Fatalf("bad -log-level: %v", err)
	}
	logger.SetLevel(lvl)
	log := logrus.NewEntry(logger)

	if err := run(flag.Arg(0), *autoAck, log); err != nil {
		log.WithError(err).Fatal("fusasm stopped")
	}
}

func run(cfgPath string, autoAck bool, log *logrus.Entry) error {
	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	sc := cfg.Safety

	// --------------------
	// Cascade + memory
	// --------------------

	vcfg, closeBanks, err := vfccu.Build(sc)
	if err != nil {
		return fmt.Errorf("cascade build failed: %w", err)
	}
	defer closeBanks()

	mem, closeImages, err := mapImages(sc.Images)
	if err != nil {
		return fmt.Errorf("memory images: %w", err)
	}
	defer closeImages()

	// --------------------
	// State machine + dispatcher
	// --------------------

	coord := &coordinator{log: log.WithField("component", "coordinator"), auto: autoAck}
	lcfg := lmm.BuildConfig(sc)
	lcfg.Checker = crc.NewChecker(mem)
	lcfg.Reactor = reactor{log: log.WithField("component", "reactor")}
	lcfg.Coordinator = coord

	fusa, err := lmm.Init(lcfg, vcfg, log)
	if err != nil {
		return fmt.Errorf("fusa init failed: %w", err)
	}
	coord.fusa = fusa

	disp := dispatch.New(fusa, log)

	sup, err := supervisor.Build(sc, disp, fusa, log)
	if err != nil {
		return fmt.Errorf("supervisor build failed: %w", err)
	}

	pub, closePub, err := writer.BuildPublisher(sc.Status, log)
	if err != nil {
		return fmt.Errorf("status publisher failed: %w", err)
	}
	defer closePub()

	log.WithFields(logrus.Fields{
		"instances": len(vcfg.Instances),
		"lms":       len(fusa.LMs()),
		"seenv":     fusa.SsenvNumGet(),
		"signature": fmt.Sprintf("0x%08x", fusa.Signature()),
	}).Info("fusa state machine ready")

	// --------------------
	// Supervision loop
	// --------------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := make(chan supervisor.PollResult)
	go sup.Run(ctx, out)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil

		case res := <-out:
			if res.Err != nil {
				log.WithFields(logrus.Fields{
					"code":  res.ErrorCode,
					"cause": errorCode(res.Err),
				}).WithError(res.Err).Warn("supervision cycle failed")
			}
			if len(res.Dispatch.Faults) > 0 {
				log.WithFields(logrus.Fields{
					"faults":  res.Dispatch.Faults,
					"cleared": res.Dispatch.Cleared,
				}).Info("faults serviced")
			}
			if pub == nil {
				continue
			}
			if err := pub.Publish(res.Snapshots); err != nil {
				log.WithError(err).Warn("status publish failed")
			}
		}
	}
}

// errorCode extracts a best-effort uint16 code from an error without
// assuming concrete types. If the error does not expose a code, returns 1.
func errorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coderA interface{ ErrorCode() uint16 }
	type coderB interface{ ModbusCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.ErrorCode()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ModbusCode()
	}
	return 1
}
