package account

import (
	"github.com/railzwaylabs/parkway/internal/account/domain"
	"github.com/railzwaylabs/parkway/internal/account/repository"
	"github.com/railzwaylabs/parkway/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("account.directory",
	fx.Provide(func(cfg config.Config, db *gorm.DB) domain.Directory {
		return repository.NewCachedDirectory(repository.NewDirectory(db), cfg.Directory.CacheTTL)
	}),
)
