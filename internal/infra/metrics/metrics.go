package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Handler exposes the default registry. MustRegister must have been called.
func Handler() http.Handler { return promhttp.Handler() }
