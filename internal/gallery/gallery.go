package gallery

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Season1Edition is the number of editions minted per season-1 card.
const Season1Edition = 100

type Artwork struct {
	ID      uint64 `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Src     string `json:"src,omitempty"`
	Twitter string `json:"twitter,omitempty"`
}

// DisplayTitle falls back to the card number for untitled works.
func (a Artwork) DisplayTitle() string {
	if a.Title != "" {
		return a.Title
	}
	return fmt.Sprintf("Card %d", a.ID)
}

var videoPattern = regexp.MustCompile(`(?i)\.mp4(\?.*)?$`)

func (a Artwork) IsVideo() bool {
	return a.Src != "" && videoPattern.MatchString(a.Src)
}

func (a Artwork) HasMedia() bool {
	return a.Src != ""
}

// Handle is the X handle taken from the artist's profile URL.
func (a Artwork) Handle() string {
	h := strings.TrimRight(a.Twitter, "/")
	if i := strings.LastIndex(h, "/"); i >= 0 {
		h = h[i+1:]
	}
	return strings.TrimPrefix(h, "@")
}

type Catalog struct {
	works map[uint64]Artwork
}

func NewCatalog(works ...Artwork) *Catalog {
	c := &Catalog{works: make(map[uint64]Artwork, len(works))}
	for _, w := range works {
		c.works[w.ID] = w
	}
	return c
}

// Season1 is the season-1 Discovery drop.
func Season1() *Catalog {
	return NewCatalog(
		Artwork{ID: 1, Title: "artonymousartifakt", Artist: "artonymousartifakt", Src: "/art/season1/artonymousartifakt_ART.mp4", Twitter: "https://x.com/artonymousart"},
		Artwork{ID: 2, Artist: "Bitcoin", Twitter: "https://x.com/artistbitcoin"},
		Artwork{ID: 3, Artist: "CryptoArte", Twitter: "https://x.com/CryptoArte"},
		Artwork{ID: 4, Artist: "DeltaSauce", Twitter: "https://x.com/delta_sauce"},
		Artwork{ID: 5, Artist: "Metageist", Twitter: "https://x.com/MetageistVR"},
		Artwork{ID: 6, Artist: "Nuclear Samurai", Twitter: "https://x.com/MutagenSamurai"},
		Artwork{ID: 7, Artist: "VERDANDI", Twitter: "https://x.com/TheVERDANDI"},
	)
}

func (c *Catalog) List() []Artwork {
	out := make([]Artwork, 0, len(c.works))
	for _, w := range c.works {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Get(id uint64) (Artwork, bool) {
	w, ok := c.works[id]
	return w, ok
}

// ShareURL is the X intent announcing a mint, linking the token on OpenSea.
func ShareURL(collection common.Address, a Artwork) string {
	item := fmt.Sprintf("https://opensea.io/item/ethereum/%s/%d", strings.ToLower(collection.Hex()), a.ID)
	text := fmt.Sprintf("Just minted “%s”", a.DisplayTitle())
	if h := a.Handle(); h != "" {
		text += " by @" + h
	}
	text += "!\n$MEME Art Drop — Season 1: Discovery 🎨\n@Memecoin2016"
	q := url.Values{}
	q.Set("text", text)
	q.Set("url", item)
	return "https://twitter.com/intent/tweet?" + q.Encode()
}
