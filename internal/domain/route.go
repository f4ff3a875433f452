package domain

// Route is a landing destination in the front end.
type Route string

const (
	RouteHome           Route = "/"
	RouteAdmin          Route = "/admin"
	RoutePartner        Route = "/partner"
	RoutePartnerPending Route = "/partner/pending"
	RouteCustomer       Route = "/dashboard"
)
