package scheduler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veilpoll/veilpoll/app/scheduler/controller"
	"github.com/veilpoll/veilpoll/app/scheduler/types"
	"github.com/veilpoll/veilpoll/pkg/utils"
)

// NewServer builds the manual-trigger HTTP server and attaches it to the app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	addr := utils.Env("ADDR", ":3001")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
