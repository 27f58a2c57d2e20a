package logging

import "go.uber.org/zap"

// New builds the service logger. Development mode gets console encoding,
// production gets JSON.
func New(environment string) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if environment == "development" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
