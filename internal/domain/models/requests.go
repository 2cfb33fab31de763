package models

// EventsQueryRequest filters the events read API.
type EventsQueryRequest struct {
	Domain string `query:"domain" validate:"omitempty,oneof=market news social fusion alert"`
	From   string `query:"from"`
	To     string `query:"to"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}
