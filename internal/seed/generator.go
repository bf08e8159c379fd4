package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxAgeDays      = 90
	maxParagraphs   = 12
	featuredPercent = 10
	excerptPercent  = 70
	imagePercent    = 50
	maxTagsPerPost  = 5
)

var (
	categories = []string{"Cardiology", "Nutrition", "Mental Health", "Pediatrics", "Emergency", "Pharmacy", "Wellness"}
	topics     = []string{"Blood Pressure", "Sleep", "Hydration", "Vaccines", "Allergies", "Diabetes", "Stress", "First Aid", "Antibiotics", "Heart Rhythm"}
	angles     = []string{"A Beginner's Guide to", "Myths About", "What Your Doctor Wants You to Know About", "Managing", "Seasonal Tips on", "New Research on"}
	tagPool    = []string{"prevention", "lifestyle", "clinic", "family", "elderly", "kids", "diet", "exercise", "medication", "screening"}
	authors    = []struct{ ID, Name string }{
		{"doc-amara", "Dr. Amara Osei"},
		{"doc-lin", "Dr. Lin Chen"},
		{"doc-rivera", "Dr. Sofia Rivera"},
		{"pharm-kaur", "Harpreet Kaur, PharmD"},
		{"ems-novak", "Tomas Novak, EMT"},
	}
)

const paragraph = "<p>Regular checkups help catch problems early. Talk to your care team " +
	"about your history, keep a list of medications and ask questions when something is unclear.</p>"

// articleInput mirrors the body of POST /articles.
type articleInput struct {
	Title         string       `json:"title"`
	Content       string       `json:"content"`
	Excerpt       string       `json:"excerpt,omitempty"`
	Category      string       `json:"category"`
	Tags          []string     `json:"tags"`
	Featured      bool         `json:"featured"`
	Status        string       `json:"status"`
	FeaturedImage string       `json:"featuredImage,omitempty"`
	CreatedAt     string       `json:"createdAt"`
	Author        *authorInput `json:"author"`
}

type authorInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// generateArticles builds n distinct published articles. Titles carry the
// index so slugs never collide.
func generateArticles(n int, seed int64, now time.Time) []articleInput {
	rnd := rand.New(rand.NewSource(seed)) //nolint:gosec // sample data only
	out := make([]articleInput, n)
	for i := range out {
		au := authors[rnd.Intn(len(authors))]
		title := fmt.Sprintf("%s %s (%d)", angles[rnd.Intn(len(angles))], topics[rnd.Intn(len(topics))], i+1)
		age := time.Duration(rnd.Float64()*maxAgeDays*24) * time.Hour

		a := articleInput{
			Title:     title,
			Content:   strings.Repeat(paragraph, 1+rnd.Intn(maxParagraphs)),
			Category:  categories[rnd.Intn(len(categories))],
			Tags:      pickTags(rnd),
			Featured:  rnd.Intn(100) < featuredPercent,
			Status:    "published",
			CreatedAt: now.Add(-age).UTC().Format(time.RFC3339),
			Author:    &authorInput{ID: au.ID, Name: au.Name},
		}
		if rnd.Intn(100) < excerptPercent {
			a.Excerpt = "Key points on " + strings.ToLower(title) + "."
		}
		if rnd.Intn(100) < imagePercent {
			a.FeaturedImage = "https://images.example.org/articles/" + uuid.NewString() + ".jpg"
		}
		out[i] = a
	}
	return out
}

func pickTags(rnd *rand.Rand) []string {
	perm := rnd.Perm(len(tagPool))
	n := rnd.Intn(maxTagsPerPost + 1)
	tags := make([]string, n)
	for i := 0; i < n; i++ {
		tags[i] = tagPool[perm[i]]
	}
	return tags
}

// viewerIDs returns n random anonymous viewer ids.
func viewerIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = uuid.NewString()
	}
	return out
}
