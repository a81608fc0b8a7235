package middleware

import (
	"github.com/tarifflab/hsnatlas/internal/server/session"
	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/graph"
	"github.com/tarifflab/hsnatlas/pkg/query"
	"github.com/tarifflab/hsnatlas/pkg/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

// App bundles the shared service dependencies handlers reach through the
// request context.
type App struct {
	Queue     *amqp091.Channel
	S3        *s3.Client
	AiClient  ai.Client
	Backend   graph.Backend
	Store     store.VectorStore
	Processor *query.Processor
	Sessions  *session.Registry
	APIKey    string
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
