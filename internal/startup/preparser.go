package startup

import (
	"media-preparser/internal/artcache"
	"media-preparser/internal/fetcher"
	"media-preparser/internal/filesystem"
	"media-preparser/internal/media"
	"media-preparser/internal/parser"
	"media-preparser/internal/preparser"
)

// NewPreparser builds the workers for every enabled domain and the
// preparser that drives them. cache and throttle may be nil.
func NewPreparser(config *Config, cache *artcache.Cache, throttle media.Throttle) (*preparser.Preparser, error) {
	retry := filesystem.DefaultRetryConfig()

	pcfg := preparser.Config{
		Types:                 config.Types,
		MaxParserThreads:      uint(config.ParserWorkers),
		MaxThumbnailerThreads: uint(config.ThumbnailerWorkers),
		Timeout:               config.Preparser.Timeout.Duration,
	}

	var (
		arts      fetcher.ArtStore
		responses fetcher.ResponseStore
	)
	if cache != nil {
		arts, responses = cache, cache
	}

	if config.Types.Has(preparser.TypeParse) {
		pcfg.Parser = parser.New(parser.Config{
			FFprobePath:  config.Paths.FFprobe,
			Retry:        retry,
			MaxSubitems:  config.Preparser.MaxSubitems,
			CheckWorkers: config.ParserWorkers,
		})
	}
	if config.Types.Has(preparser.TypeFetchMetaLocal) {
		pcfg.LocalFetcher = fetcher.NewLocal(fetcher.LocalConfig{
			Retry:  retry,
			Cache:  arts,
			ArtDir: config.ArtDir,
		})
	}
	if config.Types.Has(preparser.TypeFetchMetaNet) {
		network, err := fetcher.NewNetwork(fetcher.NetworkConfig{
			Endpoint:    config.Network.Endpoint,
			Rate:        config.Network.Rate,
			Burst:       config.Network.Burst,
			Cache:       arts,
			Responses:   responses,
			ResponseTTL: config.Network.ResponseTTL.Duration,
			ArtDir:      config.ArtDir,
			Retry:       retry,
		})
		if err != nil {
			return nil, err
		}
		pcfg.NetworkFetcher = network
	}
	if config.Types.Has(preparser.TypeThumbnail) {
		pcfg.Thumbnailer = media.NewThumbnailer(media.ThumbnailerConfig{
			CacheDir:    config.ThumbnailDir,
			Size:        config.Thumbnails.Size,
			Quality:     config.Thumbnails.Quality,
			FFmpegPath:  config.Paths.FFmpeg,
			FFprobePath: config.Paths.FFprobe,
			Retry:       retry,
			Throttle:    throttle,
		})
	}

	return preparser.New(pcfg)
}
