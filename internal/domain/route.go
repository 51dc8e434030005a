package domain

type Airport struct {
	Code    string `json:"airport_code"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type Route struct {
	ID               int64  `json:"id"`
	DepartureAirport string `json:"departure_airport"`
	ArrivalAirport   string `json:"arrival_airport"`
	Duration         string `json:"duration"`
}

func (r *Route) Snapshot() *RouteSnapshot {
	return &RouteSnapshot{
		DepartureAirport: r.DepartureAirport,
		ArrivalAirport:   r.ArrivalAirport,
		Duration:         r.Duration,
	}
}

// Inverse returns the route flown back: airports swapped, same duration, no identity.
func (r *Route) Inverse() *Route {
	return &Route{
		DepartureAirport: r.ArrivalAirport,
		ArrivalAirport:   r.DepartureAirport,
		Duration:         r.Duration,
	}
}
