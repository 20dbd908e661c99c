package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/letsmanuel/webnest-sub001/internal/collab"
	"github.com/letsmanuel/webnest-sub001/internal/crypto"
	"github.com/letsmanuel/webnest-sub001/internal/handler"
	"github.com/letsmanuel/webnest-sub001/internal/payment"
	"github.com/letsmanuel/webnest-sub001/internal/secret"
	"github.com/letsmanuel/webnest-sub001/internal/store"
	"github.com/letsmanuel/webnest-sub001/internal/store/dynamo"
	"github.com/letsmanuel/webnest-sub001/internal/store/memory"
)

// App holds the dependencies for the Lambda function.
type App struct {
	collabHandler    *handler.CollabHandler
	profileHandler   *handler.ProfileHandler
	paymentHandler   *handler.PaymentHandler
	apiGatewaySecret string
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context) *App {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config, %v", err))
	}

	devMode := os.Getenv("DEV_MODE") == "true"

	// ---------- Stores ----------
	var profiles store.ProfileStore
	var sessions store.SessionStore
	if devMode {
		mem := memory.New()
		profiles = mem
		sessions = mem
		fmt.Println("Using in-memory stores (DEV_MODE=true)")
	} else {
		dyn := dynamo.New(dynamodb.NewFromConfig(cfg))
		profiles = dyn
		sessions = dyn
	}

	// ---------- KMS ----------
	var encryptor crypto.Encryptor
	if devMode {
		encryptor = crypto.NewMockEncryptor()
		fmt.Println("Using MockEncryptor (DEV_MODE=true)")
	} else {
		kmsKeyID := os.Getenv("KMS_KEY_ID")
		if kmsKeyID == "" {
			kmsKeyID = "alias/webnest-customer-key"
		}
		encryptor = crypto.NewKMSService(kms.NewFromConfig(cfg), kmsKeyID)
	}

	// ---------- Secret Resolver ----------
	var resolver secret.Resolver
	if devMode {
		resolver = secret.NewEnvResolver()
		fmt.Println("Using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(cfg))
		fmt.Println("Using SSMResolver (SSM Parameter Store)")
	}

	jwtSecretParam := os.Getenv("JWT_SECRET_PARAM")
	if jwtSecretParam == "" {
		jwtSecretParam = "/webnest/jwt-secret"
	}
	jwtSecret, err := resolver.GetSecret(ctx, jwtSecretParam)
	if err != nil {
		log.Printf("WARNING: failed to resolve JWT_SECRET: %v", err)
		jwtSecret = "default-dev-secret"
	}

	apiGatewaySecretParam := os.Getenv("API_GATEWAY_SECRET_PARAM")
	if apiGatewaySecretParam == "" {
		apiGatewaySecretParam = "/webnest/api-gateway-secret"
	}
	apiGatewaySecret, err := resolver.GetSecret(ctx, apiGatewaySecretParam)
	if err != nil {
		log.Printf("WARNING: failed to resolve API_GATEWAY_SECRET: %v", err)
	}

	// ---------- Payments ----------
	var gateway payment.Gateway
	if devMode {
		gateway = payment.NewMockGateway()
		fmt.Println("Using MockGateway (DEV_MODE=true)")
	} else {
		stripeKeyParam := os.Getenv("STRIPE_SECRET_KEY_PARAM")
		if stripeKeyParam == "" {
			stripeKeyParam = "/webnest/stripe-secret-key"
		}
		stripeKey, err := resolver.GetSecret(ctx, stripeKeyParam)
		if err != nil {
			log.Printf("WARNING: failed to resolve STRIPE_SECRET_KEY: %v", err)
		}

		frontendURL := os.Getenv("FRONTEND_URL")
		if frontendURL == "" {
			frontendURL = "http://localhost:3000"
		}
		currency := os.Getenv("CHECKOUT_CURRENCY")
		if currency == "" {
			currency = "eur"
		}
		gateway = payment.NewStripeGateway(stripeKey, currency, frontendURL+"/tokens/success", frontendURL+"/tokens")
	}

	// ---------- Handlers ----------
	manager := collab.NewManager(profiles, sessions, collab.LogNotifier{})
	profileHandler := handler.NewProfileHandler(profiles, jwtSecret)
	collabHandler := handler.NewCollabHandler(manager, profileHandler, jwtSecret)
	paymentHandler := handler.NewPaymentHandler(gateway, profiles, encryptor, jwtSecret)

	return &App{
		collabHandler:    collabHandler,
		profileHandler:   profileHandler,
		paymentHandler:   paymentHandler,
		apiGatewaySecret: apiGatewaySecret,
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	fmt.Printf("Request: %s %s\n", method, path)

	// CORS Preflight
	if method == "OPTIONS" {
		return corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	// Security: Verify Request Origin (CloudFront only)
	if os.Getenv("DEV_MODE") != "true" {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			fmt.Printf("Security Block: Missing or invalid X-Origin-Verify header\n")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	if strings.HasPrefix(path, "/api") {
		path = strings.TrimPrefix(path, "/api")
	}

	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	// /collab
	if strings.HasPrefix(path, "/collab") {
		if path == "/collab/sessions" && method == "POST" {
			return corsResponse(must(app.collabHandler.CreateSession(ctx, req))), nil
		}
		if path == "/collab/join" && method == "POST" {
			return corsResponse(must(app.collabHandler.JoinSession(ctx, req))), nil
		}
		if strings.HasPrefix(path, "/collab/sessions/") {
			parts := strings.Split(strings.TrimPrefix(path, "/collab/sessions/"), "/")
			req.PathParameters["id"] = parts[0]

			if len(parts) == 1 && method == "GET" {
				return corsResponse(must(app.collabHandler.GetSession(ctx, req))), nil
			}
			if len(parts) == 2 && method == "POST" {
				switch parts[1] {
				case "leave":
					return corsResponse(must(app.collabHandler.LeaveSession(ctx, req))), nil
				case "deny":
					return corsResponse(must(app.collabHandler.DenyUser(ctx, req))), nil
				case "end":
					return corsResponse(must(app.collabHandler.EndSession(ctx, req))), nil
				}
			}
		}
	}

	// /profile
	if path == "/profile" {
		if method == "GET" {
			return corsResponse(must(app.profileHandler.GetProfile(ctx, req))), nil
		}
		if method == "PATCH" {
			return corsResponse(must(app.profileHandler.UpdateProfile(ctx, req))), nil
		}
	}

	// /payments
	if path == "/payments/checkout" && method == "POST" {
		return corsResponse(must(app.paymentHandler.CreateCheckout(ctx, req))), nil
	}
	if strings.HasPrefix(path, "/payments/checkout/") && method == "GET" {
		req.PathParameters["id"] = strings.TrimPrefix(path, "/payments/checkout/")
		return corsResponse(must(app.paymentHandler.GetCheckout(ctx, req))), nil
	}

	return corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = os.Getenv("FRONTEND_URL")
	if resp.Headers["Access-Control-Allow-Origin"] == "" {
		resp.Headers["Access-Control-Allow-Origin"] = "http://localhost:3000"
	}
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,PUT,DELETE,OPTIONS,PATCH"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, ignoring the error.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		fmt.Printf("Handler error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
