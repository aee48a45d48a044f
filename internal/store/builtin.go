package store

import (
	"strings"

	"route_editor/internal/models"
)

const builtinPrefix = "builtin-"

// builtins are shipped with the service and listed next to the stored routes.
// They are never written to or deleted from the database.
var builtins = []models.Route{
	{
		ID:     builtinPrefix + "centro-terminal",
		Name:   "Centro - Terminal",
		Color:  "#1E88E5",
		Public: true,
		Points: []models.Point{
			{Latitude: -17.39350, Longitude: -66.15700, Name: "Plaza 14 de Septiembre", Street: "Calle General Achá"},
			{Latitude: -17.39790, Longitude: -66.15880, Name: "Mercado 25 de Mayo", Street: "Av. San Martín"},
			{Latitude: -17.40150, Longitude: -66.16050, Name: "La Cancha", Street: "Av. Aroma"},
			{Latitude: -17.40500, Longitude: -66.16100, Name: "Terminal de Buses", Street: "Av. Ayacucho"},
		},
	},
	{
		ID:     builtinPrefix + "universidad-prado",
		Name:   "Universidad - El Prado",
		Color:  "#43A047",
		Public: true,
		Points: []models.Point{
			{Latitude: -17.39330, Longitude: -66.14560, Name: "Universidad Mayor de San Simón", Street: "Av. Oquendo"},
			{Latitude: -17.38650, Longitude: -66.15130, Name: "Plaza Colón", Street: "Av. Ballivián"},
			{Latitude: -17.37920, Longitude: -66.15480, Name: "El Prado Norte", Street: "Av. Ballivián"},
		},
	},
}

// Builtins returns copies of the built-in routes.
func Builtins() []models.Route {
	out := make([]models.Route, len(builtins))
	for i, r := range builtins {
		r.Builtin = true
		r.Points = models.ClonePoints(r.Points)
		models.Reindex(r.Points)
		out[i] = r
	}
	return out
}

// IsBuiltin reports whether id names a built-in route.
func IsBuiltin(id string) bool {
	return strings.HasPrefix(id, builtinPrefix)
}

func builtinByID(id string) (models.Route, bool) {
	for _, r := range Builtins() {
		if r.ID == id {
			return r, true
		}
	}
	return models.Route{}, false
}
