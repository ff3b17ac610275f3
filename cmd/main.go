package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.io/kevin-rd/k8s-tools/go-proxyconf/internal/config"
	"github.io/kevin-rd/k8s-tools/go-proxyconf/internal/metrics"
	"github.io/kevin-rd/k8s-tools/go-proxyconf/internal/proxyconf"
)

func init() {
	log.SetFormatter(&nested.Formatter{
		NoColors: false,
	})
	log.SetReportCaller(true)
	log.SetLevel(log.InfoLevel)
}

func main() {
	fs := pflag.NewFlagSet("go-proxyconf", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "proxy config file (yaml, json or toml)")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address until interrupted")
	dialTarget := fs.String("dial", "", "dial host:port through the proxy and report the result")
	debug := fs.Bool("debug", false, "enable debug logging")

	v := config.New()
	if err := config.BindFlags(v, fs); err != nil {
		log.Fatalf("bind flags: %v", err)
	}
	_ = fs.Parse(os.Args[1:])
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go watchSignals(cancel)

	cfg, err := buildConfig(v, *configPath)
	if err != nil {
		log.Fatalf("invalid proxy config: %v", err)
	}
	log.Infof("Proxy config: %s", cfg)

	for _, host := range fs.Args() {
		route := "direct"
		if cfg.ShouldProxy(host) {
			route = "proxy"
		}
		fmt.Printf("%s\t%s\n", host, route)
	}

	if *dialTarget != "" {
		handler := cfg.NewProxyHandler()
		conn, err := handler.DialContext(ctx, "tcp", *dialTarget)
		if err != nil {
			log.Errorf("dial %s: %v", *dialTarget, err)
		} else {
			log.Infof("dial %s ok, local %v", *dialTarget, conn.LocalAddr())
			_ = conn.Close()
		}
	}

	if *metricsAddr == "" {
		return
	}

	log.Infof("Serving metrics on %s", *metricsAddr)
	if err := metrics.Serve(ctx, *metricsAddr); err != nil {
		log.Fatalf("metrics server: %v", err)
	}
	log.Info("Metrics server stopped.")
}

// watchSignals cancels on the first SIGINT or SIGTERM and exits the process
// on the second, so a stuck shutdown can still be interrupted.
func watchSignals(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Infof("Got %v, stopping", sig)
	cancel()

	sig = <-sigCh
	log.Warnf("Got %v again, exiting now", sig)
	os.Exit(1)
}

func buildConfig(v *viper.Viper, path string) (*proxyconf.ProxyConfig, error) {
	c, err := config.Load(v, path)
	if err != nil {
		return nil, err
	}
	b, err := c.Builder()
	if err != nil {
		return nil, err
	}
	return b.Build()
}
