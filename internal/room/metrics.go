package room

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frameparty_rooms_created_total",
		Help: "Rooms created since process start.",
	})

	guessesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frameparty_guesses_total",
		Help: "Guess submissions by outcome.",
	}, []string{"outcome"})

	playersPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frameparty_players_pruned_total",
		Help: "Players removed by the heartbeat cleanup sweep.",
	})
)
