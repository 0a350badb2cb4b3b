// Package brokerrest provides the broker's operational HTTP surface with
// common middleware, served from Lambda or a local webserver.
package brokerrest

import (
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/savaki/apigateway"

	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
)

func Middlewares(service brokercli.Service, routes chi.Router) chi.Router {
	routes.Use(
		withCORS(),
		withLogger(brokercli.Logger(service)),
		middleware.Recoverer,
	)
	return routes
}

func Webserver(service brokercli.Service, routes chi.Router) error {
	logger := brokercli.Logger(service)

	if brokercli.CommonOpts.Console {
		logger.Info().Int("port", brokercli.CommonOpts.Port).Msg("starting http server")
		addr := fmt.Sprintf(":%v", brokercli.CommonOpts.Port)
		return http.ListenAndServe(addr, routes)
	}

	lambda.Start(apigateway.Wrap(routes, brokercli.CommonOpts.Env))
	return nil
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			req = req.WithContext(ctx)
			handler.ServeHTTP(w, req)
		})
	}
}
