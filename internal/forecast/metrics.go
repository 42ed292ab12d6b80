package forecast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal tracks successful model-server predictions.
	PredictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_forecast_predictions_total",
		Help: "Total number of successful model predictions",
	})

	// PredictErrorsTotal tracks failed model-server predictions.
	PredictErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_forecast_predict_errors_total",
		Help: "Total number of failed model predictions",
	})
)
