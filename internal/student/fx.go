package student

import (
	"github.com/smallbiznis/tuitionledger/internal/student/repository"
	"github.com/smallbiznis/tuitionledger/internal/student/service"
	"go.uber.org/fx"
)

var Module = fx.Module("student.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
