package lookup

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Addy-9595/northeasternconnect-backend/internal/cache"
	"github.com/Addy-9595/northeasternconnect-backend/internal/metrics"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

// MaxSkillResults caps the number of skills returned by a search.
const MaxSkillResults = 20

// TechSkills is the curated technology vocabulary.
var TechSkills = []string{
	"React", "ReactJS", "React.js", "Angular", "Vue", "Vue.js", "JavaScript", "TypeScript",
	"Python", "Java", "C", "C++", "C#", "Go", "Rust", "Swift", "Kotlin", "PHP", "Ruby",
	"Node.js", "Express.js", "Next.js", "Nest.js", "Django", "Flask", "Spring Boot",
	"MongoDB", "PostgreSQL", "MySQL", "Redis", "Elasticsearch", "DynamoDB",
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Jenkins", "CI/CD", "DevOps",
	"Git", "GitHub", "GitLab", "REST API", "GraphQL", "Microservices", "OAuth", "JWT",
	"HTML", "CSS", "Tailwind CSS", "Bootstrap", "SASS", "Webpack", "Vite",
	"Redux", "MobX", "Zustand", "Jest", "Cypress", "Selenium", "Playwright",
	"SQL", "NoSQL", "Firebase", "Supabase", "Linux", "Bash", "PowerShell",
	"Machine Learning", "TensorFlow", "PyTorch", "Scikit-learn", "Pandas", "NumPy",
	"Data Science", "Data Analysis", "Big Data", "Tableau", "Power BI",
}

var curated = func() map[string]bool {
	m := make(map[string]bool, len(TechSkills))
	for _, s := range TechSkills {
		m[strings.ToLower(s)] = true
	}
	return m
}()

// SkillService searches the curated vocabulary and the ESCO skill taxonomy.
type SkillService struct {
	client  *http.Client
	cache   *cache.Cache[[]models.Skill]
	ttl     time.Duration
	escoURL string
	logger  zerolog.Logger
}

// NewSkillService creates a service caching taxonomy results in backend.
func NewSkillService(cfg Config, backend cache.Backend, logger zerolog.Logger) *SkillService {
	escoURL := cfg.ESCOURL
	if escoURL == "" {
		escoURL = "https://ec.europa.eu/esco/api/search"
	}
	return &SkillService{
		client:  cfg.httpClient(),
		cache:   cache.New[[]models.Skill]("skills", backend),
		ttl:     cfg.cacheTTL(),
		escoURL: escoURL,
		logger:  logger,
	}
}

// Search returns up to MaxSkillResults skills matching query. Exact matches
// rank first, then prefix matches, then curated entries, then by name.
func (s *SkillService) Search(ctx context.Context, query string) []models.Skill {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Skill{}
	}
	metrics.SkillSearches.Inc()
	lower := strings.ToLower(query)

	escoCh := make(chan []models.Skill, 1)
	go func() {
		escoCh <- s.esco(ctx, query)
	}()

	merged := make([]models.Skill, 0, MaxSkillResults)
	seen := make(map[string]bool)
	for _, name := range TechSkills {
		if strings.Contains(strings.ToLower(name), lower) {
			merged = append(merged, models.Skill{ID: name, Name: name})
			seen[strings.ToLower(name)] = true
		}
	}
	for _, skill := range <-escoCh {
		key := strings.ToLower(skill.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, skill)
	}

	rankSkills(merged, lower)
	if len(merged) > MaxSkillResults {
		merged = merged[:MaxSkillResults]
	}
	return merged
}

// rankSkills orders skills for the lower-cased query.
func rankSkills(skills []models.Skill, lower string) {
	col := collate.New(language.English)
	sort.SliceStable(skills, func(i, j int) bool {
		a, b := strings.ToLower(skills[i].Name), strings.ToLower(skills[j].Name)

		if ae, be := a == lower, b == lower; ae != be {
			return ae
		}
		if ap, bp := strings.HasPrefix(a, lower), strings.HasPrefix(b, lower); ap != bp {
			return ap
		}
		if ac, bc := curated[a], curated[b]; ac != bc {
			return ac
		}
		if c := col.CompareString(skills[i].Name, skills[j].Name); c != 0 {
			return c < 0
		}
		return skills[i].Name < skills[j].Name
	})
}

// esco queries the taxonomy through the cache. Failures yield an empty list.
func (s *SkillService) esco(ctx context.Context, query string) []models.Skill {
	skills, err := s.cache.GetOrCompute(ctx, "esco_"+query, s.ttl, func(ctx context.Context) ([]models.Skill, error) {
		return s.fetchESCO(ctx, query)
	})
	if err != nil {
		metrics.LookupOutcomes.WithLabelValues("esco", "error").Inc()
		s.logger.Warn().Err(err).Str("query", query).Msg("skill taxonomy lookup failed")
		return nil
	}
	return skills
}

func (s *SkillService) fetchESCO(ctx context.Context, query string) ([]models.Skill, error) {
	u, err := url.Parse(s.escoURL)
	if err != nil {
		return nil, err
	}
	params := u.Query()
	params.Set("type", "skill")
	params.Set("text", query)
	params.Set("language", "en")
	u.RawQuery = params.Encode()

	_, body, err := get(ctx, s.client, u.String())
	if err != nil {
		return nil, err
	}

	skills := []models.Skill{}
	gjson.GetBytes(body, "_embedded.results").ForEach(func(_, result gjson.Result) bool {
		title := result.Get("title").String()
		if title == "" {
			return true
		}
		id := result.Get("uri").String()
		if id == "" {
			id = title
		}
		skills = append(skills, models.Skill{ID: id, Name: title})
		return true
	})
	metrics.LookupOutcomes.WithLabelValues("esco", "ok").Inc()
	return skills, nil
}
