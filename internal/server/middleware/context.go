package middleware

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/storygraph/backend/pkg/ai"
	"github.com/storygraph/backend/pkg/cluster"
	"github.com/storygraph/backend/pkg/extract"
	"github.com/storygraph/backend/pkg/graphstore"
	"github.com/storygraph/backend/pkg/resolve"
)

// App bundles the shared process-wide collaborators every handler needs.
type App struct {
	DBConn       *pgxpool.Pool
	Queue        *amqp091.Channel
	Graph        *graphstore.Store
	AI           ai.NewsAIClient
	Resolver     *resolve.Resolver
	Cluster      *cluster.Engine
	Orchestrator *extract.Orchestrator
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
