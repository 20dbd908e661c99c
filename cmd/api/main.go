package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/letsmanuel/webnest-sub001/internal/app"
)

func main() {
	application := app.NewApp(context.Background())
	lambda.Start(application.HandleRequest)
}
