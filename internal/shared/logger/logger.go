package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constrói o logger estruturado do serviço. Ambiente "local" usa o encoder
// de desenvolvimento (legível no terminal); o resto sai JSON de produção.
// service e env entram como campos fixos em toda linha, o que permite filtrar
// o fluxo de liquidação de um serviço específico na agregação.
func New(serviceName string, env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build(
		zap.Fields(
			zap.String("service", serviceName),
			zap.String("env", env),
		),
	)
}
