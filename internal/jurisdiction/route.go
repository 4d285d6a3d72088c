package jurisdiction

// Level is the kind of institution a case is routed to.
type Level string

const (
	LevelBank   Level = "bank"
	LevelPolice Level = "police"
	LevelCourt  Level = "court"
)

// Routing names the desk that handles a case at an institution.
type Routing struct {
	Level  Level  `json:"level"`
	Route  string `json:"route"`
	Notice string `json:"notice,omitempty"`
}

// policeRoutes maps canonical codes to the police desk. Unknown and
// missing codes fall back to FallbackPoliceRoute.
var policeRoutes = map[string]string{
	CodeUAE:         "CID / Prosecution",
	CodeSouthAfrica: "SAPS Detective Branch",
	CodeEU:          "National Police + Data Regulator",
}

// FallbackPoliceRoute is the police route outside the known jurisdictions.
const FallbackPoliceRoute = "Local Police"

// Route returns the institutional route for level in the jurisdiction
// identified by code. Unknown levels yield an empty route.
func Route(level Level, code string) Routing {
	r := Routing{Level: level}
	canon, _ := Canonical(code)

	switch level {
	case LevelBank:
		r.Route = "Fraud / Compliance Division"
		r.Notice = "Institutional licence fees apply after trial period."
	case LevelPolice:
		r.Route = FallbackPoliceRoute
		if route, ok := policeRoutes[canon]; ok {
			r.Route = route
		}
	case LevelCourt:
		r.Route = "Clerk of Court – Affidavit Filing Desk"
	}
	return r
}

// Routes returns routing for every level, in bank, police, court order.
func Routes(code string) []Routing {
	return []Routing{
		Route(LevelBank, code),
		Route(LevelPolice, code),
		Route(LevelCourt, code),
	}
}
