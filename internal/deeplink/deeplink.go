package deeplink

import (
	"net/url"
	"strconv"
	"strings"
)

// View ids understood by the desktop.
const (
	ViewLogo       = "logo"
	ViewAirdrop    = "airdrop"
	ViewPresale    = "presale"
	ViewPublicSale = "publicsale"
	ViewClaim      = "claim"
	ViewFaucet     = "faucet"
	ViewTokenomics = "tokenomics"
	ViewInfo       = "info"
	ViewDAO        = "dao"
	ViewArtDrop    = "artdrop"
	ViewGallery    = "gallery"
)

const (
	ParamOpen = "open"
	ParamCard = "card"
)

var views = map[string]string{
	ViewLogo:       ViewLogo,
	ViewAirdrop:    ViewAirdrop,
	ViewPresale:    ViewPresale,
	ViewPublicSale: ViewPublicSale,
	ViewClaim:      ViewClaim,
	ViewFaucet:     ViewFaucet,
	ViewTokenomics: ViewTokenomics,
	ViewInfo:       ViewInfo,
	ViewDAO:        ViewDAO,
	ViewArtDrop:    ViewArtDrop,
	ViewGallery:    ViewGallery,

	"mint":    ViewArtDrop,
	"art":     ViewArtDrop,
	"lore":    ViewInfo,
	"memedao": ViewDAO,
	"sale":    ViewPresale,
	"public":  ViewPublicSale,
	"claimv2": ViewClaim,
	"drop":    ViewAirdrop,
}

// legacy paths from the old multi-page site
var redirects = map[string]string{
	"/mint":      "/?open=mint",
	"/mint-s1c1": "/?open=mint&card=1",
	"/mint-s1c2": "/?open=mint&card=2",
	"/gallery":   "/?open=gallery",
}

// Link is a resolved deep link. View is empty when the URL named nothing we know.
type Link struct {
	View string `json:"view,omitempty"`
	Card uint64 `json:"card,omitempty"`
	// Clean is the original URL with the deep link parameters removed.
	Clean string `json:"clean"`
}

// Canonical maps an alias or view id to its view id.
func Canonical(name string) (string, bool) {
	v, ok := views[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// Redirect returns the deep link a legacy path now lives at.
func Redirect(path string) (string, bool) {
	target, ok := redirects[strings.TrimSuffix(path, "/")]
	return target, ok
}

func LegacyPaths() []string {
	paths := make([]string, 0, len(redirects))
	for p := range redirects {
		paths = append(paths, p)
	}
	return paths
}

// Resolve reads the open and card parameters. Unknown views and malformed cards are
// dropped, but the parameters are stripped from Clean either way.
func Resolve(raw string) (Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, err
	}
	q := u.Query()
	var link Link
	if v, ok := Canonical(q.Get(ParamOpen)); ok {
		link.View = v
		if card, err := strconv.ParseUint(q.Get(ParamCard), 10, 64); err == nil && card > 0 {
			link.Card = card
		}
	}
	q.Del(ParamOpen)
	q.Del(ParamCard)
	u.RawQuery = q.Encode()
	link.Clean = u.String()
	return link, nil
}
