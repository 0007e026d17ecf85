package api

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/screamguard/internal/detection"
	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/location"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/myaudio"
	"github.com/tphakala/screamguard/internal/notification"
	"github.com/tphakala/screamguard/internal/pipeline"
)

// Multipart field names.
const (
	fieldUpload   = "file"
	fieldRealtime = "audio"
	fieldLocation = "location"
)

// handleUpload handles POST /upload.
func (s *Server) handleUpload(c echo.Context) error {
	return s.processClip(c, fieldUpload, detection.SourceUpload, "No file uploaded", "No file selected")
}

// handleRealtime handles POST /realtime, used by the browser recorder.
func (s *Server) handleRealtime(c echo.Context) error {
	return s.processClip(c, fieldRealtime, detection.SourceRealtime, "No audio file received", "No selected file")
}

func (s *Server) processClip(c echo.Context, field, source, missingMsg, unnamedMsg string) error {
	header, err := c.FormFile(field)
	if err != nil {
		return s.HandleError(c, nil, missingMsg, http.StatusBadRequest)
	}
	if header.Filename == "" {
		return s.HandleError(c, nil, unnamedMsg, http.StatusBadRequest)
	}
	if header.Size == 0 {
		return s.HandleError(c, nil, "Empty audio file", http.StatusBadRequest)
	}

	req := location.Request{ClientIP: c.RealIP()}
	if raw := c.FormValue(fieldLocation); raw != "" {
		var p location.Point
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return s.HandleError(c, nil, "Invalid location data", http.StatusBadRequest)
		}
		req.Point = &p
	}

	stored, err := s.saveClip(header, source)
	if err != nil {
		return s.HandleError(c, err, "Failed to store audio file", http.StatusInternalServerError)
	}

	res, err := s.processor.Process(c.Request().Context(), pipeline.Input{
		Clip:     stored,
		Location: req,
		Source:   source,
	})
	if err != nil {
		return s.HandleError(c, err, "Failed to process audio", statusFor(err))
	}
	return c.JSON(http.StatusOK, res)
}

// saveClip copies the upload into the clip store. The caller owns the
// returned clip; Process releases it.
func (s *Server) saveClip(header *multipart.FileHeader, prefix string) (*myaudio.StoredClip, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return s.clips.Save(src, prefix, header.Filename)
}

// locationRequest is the body of the location endpoints. Pointers tell a
// missing coordinate apart from zero.
type locationRequest struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy float64  `json:"accuracy"`
}

// handleLocation handles POST /update-location and /get-browser-location.
func (s *Server) handleLocation(c echo.Context) error {
	var body locationRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil || body.Lat == nil || body.Lng == nil {
		return s.HandleError(c, nil, "Invalid location data", http.StatusBadRequest)
	}

	p := location.Point{Lat: *body.Lat, Lng: *body.Lng, Accuracy: body.Accuracy}
	if err := p.Validate(); err != nil {
		return s.HandleError(c, err, "Invalid location data", http.StatusBadRequest)
	}

	loc := s.resolver.FromPoint(c.Request().Context(), p)
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"location": loc,
	})
}

// alertRequest is the body of the per-channel alert endpoints.
type alertRequest struct {
	Location *alertLocation `json:"location"`
}

// alertLocation accepts the location object returned by the detection
// endpoints. Fields other than the coordinates are optional.
type alertLocation struct {
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Address       string   `json:"address"`
	Accuracy      float64  `json:"accuracy"`
	Source        string   `json:"source"`
	MapsURL       string   `json:"maps_url"`
	StaticMapURL  string   `json:"static_map_url"`
	EmbedURL      string   `json:"embed_url"`
	DirectionsURL string   `json:"directions_url"`
}

// toLocation validates the client location. Map links missing from the
// request are built with mapsKey.
func (a *alertLocation) toLocation(mapsKey string) (location.Location, error) {
	if a.Latitude == nil || a.Longitude == nil {
		return location.Location{}, errors.Newf("location coordinates missing").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	loc := location.Location{
		Latitude:  *a.Latitude,
		Longitude: *a.Longitude,
		Address:   a.Address,
		Accuracy:  a.Accuracy,
		Source:    location.SourceBrowser,
		Links: location.Links{
			MapsURL:       a.MapsURL,
			StaticMapURL:  a.StaticMapURL,
			EmbedURL:      a.EmbedURL,
			DirectionsURL: a.DirectionsURL,
		},
	}
	if a.Source != "" {
		if err := loc.Source.UnmarshalText([]byte(a.Source)); err != nil {
			loc.Source = location.SourceBrowser
		}
	}
	if loc.MapsURL == "" {
		loc.Links = location.BuildLinks(loc.Coordinates(), mapsKey)
	}
	return loc, nil
}

var channelMessages = map[string]struct{ ok, failed string }{
	notification.ChannelSMS:   {"SMS alert sent", "Failed to send SMS"},
	notification.ChannelEmail: {"Email alert sent", "Failed to send email"},
	notification.ChannelCall:  {"Emergency call to %s initiated", "Failed to initiate call"},
}

// channelHandler returns the handler for one of the per-channel alert
// endpoints.
func (s *Server) channelHandler(channel string) echo.HandlerFunc {
	msgs := channelMessages[channel]
	return func(c echo.Context) error {
		var body alertRequest
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil || body.Location == nil {
			return s.HandleError(c, nil, "Location data missing", http.StatusBadRequest)
		}
		loc, err := body.Location.toLocation(s.config.MapsAPIKey)
		if err != nil {
			return s.HandleError(c, err, "Location data missing", http.StatusBadRequest)
		}

		res, err := s.processor.DispatchLocation(c.Request().Context(), channel, loc)
		if err != nil {
			return s.HandleError(c, err, msgs.failed, statusFor(err))
		}
		if !res.Success {
			return s.writeError(c, nil, res.Reason, msgs.failed, http.StatusInternalServerError)
		}

		message := msgs.ok
		if strings.Contains(message, "%s") {
			message = fmt.Sprintf(message, s.settings.Escalation.EmergencyNumber)
		}
		s.log.Info("alert sent",
			logger.String("channel", channel),
			logger.String("location_source", loc.Source.String()))
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "success",
			"message": message,
		})
	}
}

// handleDispatch handles POST /escalations/:id/dispatch, the operator's
// confirmation of a pending escalation.
func (s *Server) handleDispatch(c echo.Context) error {
	id := c.Param("id")
	event, err := s.processor.Dispatch(c.Request().Context(), id)
	if err != nil {
		return s.HandleError(c, err, "Failed to dispatch escalation", statusFor(err))
	}
	return c.JSON(http.StatusOK, event)
}
