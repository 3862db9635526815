package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/booking"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/negotiation"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/sharing"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/visit"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// Room sharing

func (s *Server) createListing(c echo.Context) error {
	var req createListingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	from, err := parseDate("availableFrom", req.AvailableFrom, s.Location)
	if err != nil {
		return err
	}
	till, err := parseDate("availableTill", req.AvailableTill, s.Location)
	if err != nil {
		return err
	}

	listing, err := s.Registry.Create(c.Request().Context(), actorFrom(c).ID, sharing.CreateInput{
		PropertyRef:     req.PropertyID,
		MaxParticipants: req.MaxParticipants,
		Requirements: market.Requirements{
			Gender:      req.Requirements.Gender,
			Lifestyle:   req.Requirements.Lifestyle,
			Preferences: req.Requirements.Preferences,
			AgeMin:      req.Requirements.AgeMin,
			AgeMax:      req.Requirements.AgeMax,
		},
		CostSharing: market.CostSharing{
			RentPerPerson:    req.CostSharing.RentPerPerson,
			DepositPerPerson: req.CostSharing.DepositPerPerson,
		},
		AvailableFrom: from,
		AvailableTill: till,
		HouseRules:    req.HouseRules,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, listing)
}

func (s *Server) listListings(c echo.Context) error {
	listings, err := s.Registry.ListByActor(c.Request().Context(), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, listings)
}

func (s *Server) getListing(c echo.Context) error {
	listing, err := s.Registry.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, listing)
}

func (s *Server) applyToListing(c echo.Context) error {
	var req applyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	app, err := s.Matcher.Apply(c.Request().Context(), c.Param("id"), actorFrom(c).ID, req.Message)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, app)
}

func (s *Server) listApplications(c echo.Context) error {
	apps, err := s.Matcher.ListForListing(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, apps)
}

func (s *Server) respondToApplication(c echo.Context) error {
	var req respondToApplicationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	actor := actorFrom(c)

	app, err := s.Matcher.Get(ctx, req.ApplicationID, actor.ID)
	if err != nil {
		return err
	}
	if app.ListingRef != c.Param("id") {
		return market.NotFoundf("application %s does not belong to listing %s", req.ApplicationID, c.Param("id"))
	}

	decision := sharing.DecisionReject
	if req.Status == "accepted" {
		decision = sharing.DecisionAccept
	}
	app, err = s.Matcher.Respond(ctx, req.ApplicationID, actor.ID, decision, req.Message)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, app)
}

func (s *Server) closeListing(c echo.Context) error {
	listing, err := s.Registry.Close(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, listing)
}

func (s *Server) expireListing(c echo.Context) error {
	listing, err := s.Registry.Expire(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, listing)
}

func (s *Server) getApplication(c echo.Context) error {
	app, err := s.Matcher.Get(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, app)
}

func (s *Server) withdrawApplication(c echo.Context) error {
	app, err := s.Matcher.Withdraw(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, app)
}

// Negotiations

func (s *Server) proposeNegotiation(c echo.Context) error {
	var req proposeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	n, err := s.Negotiations.Propose(c.Request().Context(), actorFrom(c).ID, req.RoomID, req.ProposedPrice, req.Message)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, n)
}

func (s *Server) listNegotiations(c echo.Context) error {
	list, err := s.Negotiations.ListByActor(c.Request().Context(), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (s *Server) getNegotiation(c echo.Context) error {
	n, err := s.Negotiations.Get(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, n)
}

func (s *Server) respondToNegotiation(c echo.Context) error {
	var req respondToNegotiationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	n, err := s.Negotiations.Respond(c.Request().Context(), c.Param("id"), actorFrom(c).ID,
		negotiation.Action(req.Action), req.CounterPrice, req.Message)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, n)
}

// Bookings

func (s *Server) createBooking(c echo.Context) error {
	var req createBookingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	moveIn, err := parseDate("moveInDate", req.MoveInDate, s.Location)
	if err != nil {
		return err
	}
	b, err := s.Ledger.Create(c.Request().Context(), actorFrom(c).ID, booking.CreateInput{
		RoomRef:        req.RoomID,
		MoveInDate:     moveIn,
		DurationMonths: req.Duration,
		NegotiationRef: req.NegotiationID,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, b)
}

func (s *Server) listBookings(c echo.Context) error {
	list, err := s.Ledger.ListByActor(c.Request().Context(), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (s *Server) getBooking(c echo.Context) error {
	b, err := s.Ledger.Get(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, b)
}

func (s *Server) respondToBooking(c echo.Context) error {
	var req respondToBookingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	b, err := s.Ledger.OwnerRespond(c.Request().Context(), c.Param("id"), actorFrom(c).ID, booking.Decision(req.Action))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, b)
}

func (s *Server) cancelBooking(c echo.Context) error {
	b, err := s.Ledger.Cancel(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, b)
}

// Payments

func (s *Server) createPaymentOrder(c echo.Context) error {
	var req createOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	o, err := s.Payments.CreateOrder(c.Request().Context(), req.BookingID, actorFrom(c).ID, req.Amount)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, o)
}

func (s *Server) verifyPayment(c echo.Context) error {
	var req verifyPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.Payments.Verify(c.Request().Context(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, res)
}

// Visits

func (s *Server) requestVisit(c echo.Context) error {
	var req requestVisitRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := s.Visits.Request(c.Request().Context(), actorFrom(c).ID, req.PropertyID, req.RecipientID,
		market.Slot{Date: req.PreferredDate, Time: req.PreferredTime}, req.Message)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, v)
}

func (s *Server) listVisits(c echo.Context) error {
	list, err := s.Visits.ListByActor(c.Request().Context(), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, list)
}

func (s *Server) getVisit(c echo.Context) error {
	v, err := s.Visits.Get(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, v)
}

func (s *Server) respondToVisit(c echo.Context) error {
	var req respondToVisitRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := s.Visits.Respond(c.Request().Context(), c.Param("id"), visit.Move{
		Action:   visit.Action(req.Action),
		ActorRef: actorFrom(c).ID,
		Slot:     market.Slot{Date: req.NewDate, Time: req.NewTime},
		Notes:    req.Message,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, v)
}

func (s *Server) answerReschedule(c echo.Context) error {
	var req rescheduleResponseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := s.Visits.AnswerReschedule(c.Request().Context(), c.Param("id"), actorFrom(c).ID, req.Action == "accept")
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, v)
}

func (s *Server) cancelVisit(c echo.Context) error {
	v, err := s.Visits.Cancel(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, v)
}
