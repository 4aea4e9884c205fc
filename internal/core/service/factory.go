package service

import (
	"github.com/rs/zerolog"

	"sebsync/internal/adapters/library"
	"sebsync/internal/adapters/source"
	"sebsync/internal/config"
	"sebsync/internal/core/domain/ports"
)

func NewCatalogSource(cfg *config.Config, log zerolog.Logger) ports.CatalogSource {
	creds := source.EmailCredentials{Email: cfg.Email}
	return source.NewOPDSCatalog(cfg.OPDSURL, creds, cfg.MaxSizeBytes(), log)
}

func NewLibraryScanner(cfg *config.Config, log zerolog.Logger) ports.LibraryScanner {
	return library.NewScanner(cfg.BooksDir, cfg.DownloadsDir, library.DefaultIDMarker, log)
}
