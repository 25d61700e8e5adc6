package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"homeward/internal/domain"
	"homeward/internal/engine"
	"homeward/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"listing cannot go from paused to under_review"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Homeward API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Homeward API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerUsers(group, cfg.Engine)
	registerPets(group, cfg.Engine)
	registerInterventions(group, cfg.Engine)
	registerRequests(group, cfg.Engine)
	registerListings(group, cfg.Engine)
	registerProfiles(group, cfg.Engine)
	registerApplications(group, cfg.Engine)
	registerVisits(group, cfg.Engine)
	registerAdoptions(group, cfg.Engine)
	registerMaintenance(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerMe(group)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine errors onto the HTTP envelope.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var verr engine.ValidationError
	if errors.As(err, &verr) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	var terr engine.InvalidTransitionError
	if errors.As(err, &terr) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"entity": terr.Entity,
			"from":   terr.From,
			"to":     terr.To,
		})
	}
	var perr engine.PreconditionNotMetError
	if errors.As(err, &perr) {
		var details map[string]any
		if perr.SecondsRemaining > 0 {
			details = map[string]any{"seconds_remaining": perr.SecondsRemaining}
		}
		return newAPIError(http.StatusUnprocessableEntity, "precondition_not_met", err.Error(), details)
	}
	var cerr engine.ConflictError
	if errors.As(err, &cerr) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	var derr engine.PermissionDeniedError
	if errors.As(err, &derr) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "precondition_not_met"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]bool{
		"/" + strings.TrimPrefix(path.Join(basePath, "health"), "/"):         true,
		"/" + strings.TrimPrefix(path.Join(basePath, "auth/dev/login"), "/"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Homeward API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		u, err := e.CreateUser(ctx, engine.UserCreateOptions{
			DisplayName:   input.Body.DisplayName,
			Email:         input.Body.Email,
			EmailVerified: input.Body.EmailVerified,
			PhoneVerified: input.Body.PhoneVerified,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		u, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-verification",
		Method:      http.MethodPatch,
		Path:        "/users/{id}/verification",
		Summary:     "Set user verification flags",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			EmailVerified bool `json:"email_verified"`
			PhoneVerified bool `json:"phone_verified"`
		} `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		if err := e.Repo.SetUserVerification(ctx, input.ID, input.Body.EmailVerified, input.Body.PhoneVerified); err != nil {
			return nil, handleError(err)
		}
		u, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})
}

func registerPets(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-pet",
		Method:        http.MethodPost,
		Path:          "/pets",
		Summary:       "Create pet",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreatePetRequest `json:"body"`
	}) (*struct {
		Body domain.Pet `json:"body"`
	}, error) {
		p, err := e.CreatePet(ctx, engine.PetCreateOptions{
			OwnerID:  input.Body.OwnerID,
			Name:     input.Body.Name,
			Species:  input.Body.Species,
			Breed:    input.Body.Breed,
			AgeYears: input.Body.AgeYears,
			Gender:   input.Body.Gender,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Pet `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pet",
		Method:      http.MethodGet,
		Path:        "/pets/{id}",
		Summary:     "Get pet",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Pet `json:"body"`
	}, error) {
		p, err := e.Repo.GetPet(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Pet `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-user-pets",
		Method:      http.MethodGet,
		Path:        "/users/{id}/pets",
		Summary:     "List a user's pets",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.Pet `json:"body"`
	}, error) {
		items, err := e.Repo.ListPets(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Pet `json:"body"`
		}{Body: items}, nil
	})
}

func registerInterventions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-intervention",
		Method:        http.MethodPost,
		Path:          "/interventions",
		Summary:       "Start rehoming intervention",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body StartInterventionRequest `json:"body"`
	}) (*struct {
		Body domain.Intervention `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		iv, err := e.StartIntervention(ctx, input.Body.OwnerID, input.Body.ReasonCategory, input.Body.ReasonText, input.Body.Urgency, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Intervention `json:"body"`
		}{Body: iv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "acknowledge-intervention",
		Method:      http.MethodPost,
		Path:        "/interventions/{id}/acknowledge",
		Summary:     "Acknowledge intervention",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Intervention `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		iv, err := e.AcknowledgeIntervention(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Intervention `json:"body"`
		}{Body: iv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-intervention",
		Method:      http.MethodGet,
		Path:        "/interventions/{id}",
		Summary:     "Get intervention",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Intervention `json:"body"`
	}, error) {
		iv, err := e.Repo.GetIntervention(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Intervention `json:"body"`
		}{Body: iv}, nil
	})
}

func registerRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-request",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Create rehoming request",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateRequestRequest `json:"body"`
	}) (*struct {
		Body domain.RehomingRequest `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req, err := e.CreateRequest(ctx, engine.RequestCreateOptions{
			PetID:         input.Body.PetID,
			OwnerID:       input.Body.OwnerID,
			Urgency:       input.Body.Urgency,
			Reason:        input.Body.Reason,
			IdealHome:     input.Body.IdealHome,
			TermsAccepted: input.Body.TermsAccepted,
			LocationCity:  input.Body.LocationCity,
			LocationState: input.Body.LocationState,
			LocationZip:   input.Body.LocationZip,
			PrivacyLevel:  input.Body.PrivacyLevel,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RehomingRequest `json:"body"`
		}{Body: req}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-request",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/confirm",
		Summary:     "Confirm rehoming request",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.RehomingRequest `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req, err := e.ConfirmRequest(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RehomingRequest `json:"body"`
		}{Body: req}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-request",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/cancel",
		Summary:     "Cancel rehoming request",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body CancelRequestRequest `json:"body"`
	}) (*struct {
		Body domain.RehomingRequest `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req, err := e.CancelRequest(ctx, input.ID, input.Body.Reason, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RehomingRequest `json:"body"`
		}{Body: req}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-request",
		Method:      http.MethodGet,
		Path:        "/requests/{id}",
		Summary:     "Get rehoming request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.RehomingRequest `json:"body"`
	}, error) {
		req, err := e.Repo.GetRequest(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RehomingRequest `json:"body"`
		}{Body: req}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-requests",
		Method:      http.MethodGet,
		Path:        "/requests",
		Summary:     "List rehoming requests",
	}, func(ctx context.Context, input *struct {
		OwnerID string `query:"owner_id"`
		PetID   string `query:"pet_id"`
		Status  string `query:"status"`
		Limit   int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.RehomingRequest `json:"body"`
	}, error) {
		items, err := e.Repo.ListRequests(ctx, repo.RequestFilters{
			OwnerID: input.OwnerID,
			PetID:   input.PetID,
			Status:  input.Status,
			Limit:   normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.RehomingRequest `json:"body"`
		}{Body: items}, nil
	})
}

func registerListings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-listing",
		Method:        http.MethodPost,
		Path:          "/listings",
		Summary:       "Create listing",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateListingRequest `json:"body"`
	}) (*struct {
		Body domain.RehomingListing `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.CreateListing(ctx, engine.ListingCreateOptions{
			RequestID:           input.Body.RequestID,
			RehomingStory:       input.Body.RehomingStory,
			Medical:             input.Body.Medical,
			Behavioral:          input.Body.Behavioral,
			AggressionDisclosed: input.Body.AggressionDisclosed,
			AdoptionFee:         input.Body.AdoptionFee,
			Photos:              input.Body.Photos,
			ActorID:             actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RehomingListing `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-listing",
		Method:      http.MethodGet,
		Path:        "/listings/{id}",
		Summary:     "Get listing",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.RehomingListing `json:"body"`
	}, error) {
		// every read counts as a view
		if err := e.Repo.IncrementListingViews(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		l, err := e.Repo.GetListing(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RehomingListing `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-listings",
		Method:      http.MethodGet,
		Path:        "/listings",
		Summary:     "Browse listings",
	}, func(ctx context.Context, input *struct {
		OwnerID string `query:"owner_id"`
		Status  string `query:"status"`
		Species string `query:"species"`
		MaxFee  int    `query:"max_fee"`
		Limit   int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.RehomingListing `json:"body"`
	}, error) {
		items, err := e.Repo.ListListings(ctx, repo.ListingFilters{
			OwnerID: input.OwnerID,
			Status:  input.Status,
			Species: input.Species,
			MaxFee:  input.MaxFee,
			Limit:   normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.RehomingListing `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "moderate-listing",
		Method:      http.MethodPost,
		Path:        "/listings/{id}/moderate",
		Summary:     "Rerun automated moderation checks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.ListingReview `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rev, err := e.RunModeration(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ListingReview `json:"body"`
		}{Body: rev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-listing-review",
		Method:      http.MethodGet,
		Path:        "/listings/{id}/review",
		Summary:     "Get listing review",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.ListingReview `json:"body"`
	}, error) {
		rev, err := e.Repo.GetReviewByListing(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ListingReview `json:"body"`
		}{Body: rev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decide-listing",
		Method:      http.MethodPost,
		Path:        "/listings/{id}/decision",
		Summary:     "Apply moderation decision",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body ListingDecisionRequest `json:"body"`
	}) (*struct {
		Body domain.RehomingListing `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.DecideListing(ctx, input.ID, input.Body.Decision, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RehomingListing `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-listing-status",
		Method:      http.MethodPatch,
		Path:        "/listings/{id}/status",
		Summary:     "Update listing status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body ListingStatusRequest `json:"body"`
	}) (*struct {
		Body domain.RehomingListing `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.UpdateListingStatus(ctx, input.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RehomingListing `json:"body"`
		}{Body: l}, nil
	})
}

func registerProfiles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "upsert-profile",
		Method:      http.MethodPut,
		Path:        "/profiles/{user_id}",
		Summary:     "Save adopter profile",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string               `path:"user_id"`
		Body   UpsertProfileRequest `json:"body"`
	}) (*struct {
		Body domain.AdopterProfile `json:"body"`
	}, error) {
		p, err := e.UpsertAdopterProfile(ctx, engine.ProfileUpsertOptions{
			UserID:               input.UserID,
			HousingType:          input.Body.HousingType,
			AdultsCount:          input.Body.AdultsCount,
			ChildrenCount:        input.Body.ChildrenCount,
			ChildrenCompatible:   input.Body.ChildrenCompatible,
			OtherPetsCount:       input.Body.OtherPetsCount,
			OtherPetsCompatible:  input.Body.OtherPetsCompatible,
			ExperienceYears:      input.Body.ExperienceYears,
			DailyExerciseMinutes: input.Body.DailyExerciseMinutes,
			ReferencesCount:      input.Body.ReferencesCount,
			Motivation:           input.Body.Motivation,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdopterProfile `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profiles/{user_id}",
		Summary:     "Get adopter profile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body domain.AdopterProfile `json:"body"`
	}, error) {
		p, err := e.Repo.GetProfile(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdopterProfile `json:"body"`
		}{Body: p}, nil
	})
}

func registerApplications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-application",
		Method:        http.MethodPost,
		Path:          "/applications",
		Summary:       "Submit adoption application",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body SubmitApplicationRequest `json:"body"`
	}) (*struct {
		Body domain.AdoptionApplication `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.SubmitApplication(ctx, engine.ApplicationSubmitOptions{
			ListingID:   input.Body.ListingID,
			ApplicantID: actorID,
			Message:     input.Body.Message,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdoptionApplication `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{id}",
		Summary:     "Get application",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.AdoptionApplication `json:"body"`
	}, error) {
		a, err := e.Repo.GetApplication(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdoptionApplication `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "List applications",
	}, func(ctx context.Context, input *struct {
		ListingID   string `query:"listing_id"`
		ApplicantID string `query:"applicant_id"`
		Status      string `query:"status"`
		Limit       int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.AdoptionApplication `json:"body"`
	}, error) {
		items, err := e.Repo.ListApplications(ctx, repo.ApplicationFilters{
			ListingID:   input.ListingID,
			ApplicantID: input.ApplicantID,
			Status:      input.Status,
			Limit:       normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AdoptionApplication `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/advance",
		Summary:     "Advance application status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                    `path:"id"`
		Body AdvanceApplicationRequest `json:"body"`
	}) (*struct {
		Body domain.AdoptionApplication `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.AdvanceApplication(ctx, input.ID, input.Body.Status, input.Body.Reason, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdoptionApplication `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "withdraw-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/withdraw",
		Summary:     "Withdraw application",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.AdoptionApplication `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.WithdrawApplication(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdoptionApplication `json:"body"`
		}{Body: a}, nil
	})
}

func registerVisits(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "schedule-meet-greet",
		Method:        http.MethodPost,
		Path:          "/applications/{id}/meet-greets",
		Summary:       "Schedule meet & greet",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body ScheduleMeetGreetRequest `json:"body"`
	}) (*struct {
		Body domain.MeetGreetSchedule `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.ScheduleMeetGreet(ctx, engine.MeetGreetScheduleOptions{
			ApplicationID:   input.ID,
			ScheduledAt:     input.Body.ScheduledAt,
			DurationMinutes: input.Body.DurationMinutes,
			LocationType:    input.Body.LocationType,
			LocationDetails: input.Body.LocationDetails,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MeetGreetSchedule `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-meet-greets",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/meet-greets",
		Summary:     "List meet & greets",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.MeetGreetSchedule `json:"body"`
	}, error) {
		items, err := e.Repo.ListMeetGreets(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.MeetGreetSchedule `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-meet-greet",
		Method:      http.MethodPost,
		Path:        "/meet-greets/{id}/confirm",
		Summary:     "Confirm meet & greet",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.MeetGreetSchedule `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.ConfirmMeetGreet(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MeetGreetSchedule `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-meet-greet",
		Method:      http.MethodPost,
		Path:        "/meet-greets/{id}/complete",
		Summary:     "Complete meet & greet",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body CompleteMeetGreetRequest `json:"body"`
	}) (*struct {
		Body domain.MeetGreetSchedule `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CompleteMeetGreet(ctx, input.ID, input.Body.Outcome, input.Body.OwnerNotes, input.Body.AdopterNotes, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MeetGreetSchedule `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "schedule-home-check",
		Method:        http.MethodPost,
		Path:          "/applications/{id}/home-checks",
		Summary:       "Schedule home check",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body ScheduleHomeCheckRequest `json:"body"`
	}) (*struct {
		Body domain.HomeCheck `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		h, err := e.ScheduleHomeCheck(ctx, engine.HomeCheckScheduleOptions{
			ApplicationID: input.ID,
			ScheduledAt:   input.Body.ScheduledAt,
			PerformedBy:   input.Body.PerformedBy,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.HomeCheck `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-home-checks",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/home-checks",
		Summary:     "List home checks",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.HomeCheck `json:"body"`
	}, error) {
		items, err := e.Repo.ListHomeChecks(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.HomeCheck `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-home-check",
		Method:      http.MethodPost,
		Path:        "/home-checks/{id}/complete",
		Summary:     "Complete home check",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body CompleteHomeCheckRequest `json:"body"`
	}) (*struct {
		Body domain.HomeCheck `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		h, err := e.CompleteHomeCheck(ctx, input.ID, input.Body.Checklist, input.Body.Passed, input.Body.Notes, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.HomeCheck `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-visit-note",
		Method:        http.MethodPost,
		Path:          "/applications/{id}/notes",
		Summary:       "Add visit note",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body AddVisitNoteRequest `json:"body"`
	}) (*struct {
		Body domain.VisitNote `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.AddVisitNote(ctx, engine.VisitNoteOptions{
			ApplicationID: input.ID,
			VisitType:     input.Body.VisitType,
			VisitDate:     input.Body.VisitDate,
			Note:          input.Body.Note,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.VisitNote `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-visit-notes",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/notes",
		Summary:     "List visit notes",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.VisitNote `json:"body"`
	}, error) {
		items, err := e.Repo.ListVisitNotes(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.VisitNote `json:"body"`
		}{Body: items}, nil
	})
}

func registerAdoptions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "finalize-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/finalize",
		Summary:     "Finalize adoption",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.FinalizeResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.FinalizeApplication(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.FinalizeResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application-contract",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/contract",
		Summary:     "Get adoption contract",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.AdoptionContract `json:"body"`
	}, error) {
		c, err := e.Repo.GetContractByApplication(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdoptionContract `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sign-contract",
		Method:      http.MethodPost,
		Path:        "/contracts/{id}/sign",
		Summary:     "Sign adoption contract",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body SignContractRequest `json:"body"`
	}) (*struct {
		Body domain.AdoptionContract `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.SignContract(ctx, input.ID, actorID, input.Body.SignatureIP)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdoptionContract `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application-payment",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/payment",
		Summary:     "Get adoption payment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.AdoptionPayment `json:"body"`
	}, error) {
		p, err := e.Repo.GetPaymentByApplication(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdoptionPayment `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-payment-status",
		Method:      http.MethodPost,
		Path:        "/payments/{id}/status",
		Summary:     "Set payment status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body PaymentStatusRequest `json:"body"`
	}) (*struct {
		Body domain.AdoptionPayment `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.SetPaymentStatus(ctx, input.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AdoptionPayment `json:"body"`
		}{Body: p}, nil
	})
}

func registerMaintenance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "sweep-stale",
		Method:      http.MethodPost,
		Path:        "/maintenance/sweep",
		Summary:     "Expire stale requests and listings",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.ExpireStaleResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ExpireStale(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ExpireStaleResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.EventsAfter(ctx, limit+1, cursorID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body CreateAPIKeyResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		// the raw key is shown once; only its hash is stored
		raw := "hw_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		key := domain.APIKey{
			ID:      uuid.NewString(),
			ActorID: actorID,
			Name:    input.Body.Name,
			KeyHash: repo.HashAPIKey(raw),
		}
		if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CreateAPIKeyResponse `json:"body"`
		}{Body: CreateAPIKeyResponse{
			ID:      key.ID,
			ActorID: key.ActorID,
			Name:    key.Name,
			Key:     raw,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListAPIKeys(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		for i := range items {
			items[i].KeyHash = ""
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/api-keys/{id}",
		Summary:     "Delete API key",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok || p.ActorID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{ActorID: p.ActorID, Source: p.Source}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
