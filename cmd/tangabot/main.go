package main

import (
	"log"

	"github.com/coresuz/tangabot/app"
	"github.com/coresuz/tangabot/core/buildinfo"
	"github.com/coresuz/tangabot/core/cmd"
)

func main() {
	log.Printf("tangabot %s (%s)", buildinfo.Version, buildinfo.Commit)

	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			a := cfg.(*app.App)
			if err := a.Bootstrap(); err != nil {
				return nil, err
			}
			return a, nil
		},
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
