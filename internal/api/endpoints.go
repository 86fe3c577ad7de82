package api

import (
	"net/url"
)

const (
	// BaseURL is the base URL for the 12306 web API
	BaseURL = "https://kyfw.12306.cn"

	// EndpointStationTable is the bulk station name/code resource (JavaScript)
	EndpointStationTable = "/otn/resources/js/framework/station_name.js"

	// EndpointTicketQuery returns remaining tickets between two stations
	// Required params (in order): leftTicketDTO.train_date, leftTicketDTO.from_station,
	// leftTicketDTO.to_station, purpose_codes
	EndpointTicketQuery = "/otn/leftTicket/queryG"

	// EndpointStopSequence returns a train's ordered stops
	// Required params: train_no, from_station_telecode, to_station_telecode, depart_date
	EndpointStopSequence = "/otn/czxx/queryByTrainNo"

	// EndpointBookingPage is the ticket search page used for deep links
	EndpointBookingPage = "/otn/leftTicket/init"

	// PurposeAdult is the purpose code for adult tickets
	PurposeAdult = "ADULT"

	// DateLayout is the date format used by every endpoint
	DateLayout = "2006-01-02"
)

// BookingURL returns a deep link to the booking page prefilled with the segment
func BookingURL(fromName, fromCode, toName, toCode, date string) string {
	params := url.Values{}
	params.Set("linktypeid", "dc")
	params.Set("fs", fromName+","+fromCode)
	params.Set("ts", toName+","+toCode)
	params.Set("date", date)
	params.Set("flag", "N,N,Y")
	return BaseURL + EndpointBookingPage + "?" + params.Encode()
}

// ticketQueryParams keeps the parameter order the endpoint expects
func ticketQueryParams(date, from, to string) string {
	return "leftTicketDTO.train_date=" + url.QueryEscape(date) +
		"&leftTicketDTO.from_station=" + url.QueryEscape(from) +
		"&leftTicketDTO.to_station=" + url.QueryEscape(to) +
		"&purpose_codes=" + PurposeAdult
}
