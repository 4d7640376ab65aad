package main

import (
	"fmt"
	"os"

	"github.com/tech-arch1tect/tokengate/app"
	"go.uber.org/zap"
)

func main() {
	application, err := app.NewApp().WithAutoConfig().Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengate: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		application.Logger().Error("tokengate stopped", zap.Error(err))
		_ = application.Logger().Sync()
		os.Exit(1)
	}
	_ = application.Logger().Sync()
}
