package correlation

// technologyByExtension maps file extensions seen in change metadata to a
// canonical technology name.
var technologyByExtension = map[string]string{
	".py":         "Python",
	".js":         "JavaScript",
	".ts":         "TypeScript",
	".java":       "Java",
	".cs":         "C#",
	".cpp":        "C++",
	".c":          "C",
	".go":         "Go",
	".rs":         "Rust",
	".php":        "PHP",
	".rb":         "Ruby",
	".swift":      "Swift",
	".kt":         "Kotlin",
	".scala":      "Scala",
	".sql":        "SQL",
	".html":       "HTML",
	".css":        "CSS",
	".scss":       "SCSS",
	".less":       "LESS",
	".vue":        "Vue.js",
	".jsx":        "React",
	".tsx":        "React",
	".json":       "JSON",
	".xml":        "XML",
	".yaml":       "YAML",
	".yml":        "YAML",
	".dockerfile": "Docker",
	".tf":         "Terraform",
	".sh":         "Shell",
	".ps1":        "PowerShell",
	".r":          "R",
	".m":          "MATLAB",
	".dart":       "Dart",
}

// technologyMentionPatterns maps a canonical technology name to the lowercase
// substrings that indicate it in free text or labels.
var technologyMentionPatterns = map[string][]string{
	"React":          {"react", "react-", "jsx", "tsx"},
	"Vue.js":         {"vue", "vuejs", "vue.js"},
	"Angular":        {"angular", "angularjs"},
	"Next.js":        {"next.js", "nextjs"},
	"Nuxt.js":        {"nuxt", "nuxtjs"},
	"Svelte":         {"svelte"},
	"FastAPI":        {"fastapi"},
	"Django":         {"django"},
	"Flask":          {"flask"},
	"Express.js":     {"express", "expressjs"},
	"Spring":         {"spring boot", "springboot", "spring"},
	"Laravel":        {"laravel"},
	"Rails":          {"rails", "ruby on rails"},
	"ASP.NET":        {"asp.net", "aspnet"},
	"PostgreSQL":     {"postgresql", "postgres"},
	"MySQL":          {"mysql"},
	"MongoDB":        {"mongodb", "mongo"},
	"Redis":          {"redis"},
	"SQLite":         {"sqlite"},
	"Elasticsearch":  {"elasticsearch", "elastic"},
	"Docker":         {"docker", "dockerfile", "container"},
	"Kubernetes":     {"kubernetes", "k8s", "kubectl"},
	"AWS":            {"aws", "amazon web services", "ec2", "s3", "lambda"},
	"Azure":          {"azure"},
	"GCP":            {"gcp", "google cloud"},
	"Terraform":      {"terraform"},
	"Jenkins":        {"jenkins"},
	"GitLab CI":      {"gitlab ci", "gitlab-ci", ".gitlab-ci"},
	"GitHub Actions": {"github actions", "workflow"},
	"Jest":           {"jest"},
	"Pytest":         {"pytest"},
	"JUnit":          {"junit"},
	"Cypress":        {"cypress"},
	"Selenium":       {"selenium"},
	"Git":            {"git", "commit", "merge", "branch"},
	"npm":            {"npm", "package.json"},
	"yarn":           {"yarn"},
	"pip":            {"pip", "requirements.txt"},
	"Maven":          {"maven", "pom.xml"},
	"Gradle":         {"gradle"},
	"Webpack":        {"webpack"},
	"Vite":           {"vite"},
	"React Native":   {"react native", "react-native"},
	"Flutter":        {"flutter"},
	"iOS":            {"ios", "swift", "xcode"},
	"Android":        {"android", "kotlin"},
}

// fileMetadataFields are the metadata keys that may carry changed-file paths.
var fileMetadataFields = []string{"files_changed", "file_paths", "modified_files", "added_files"}

// labelMetadataFields are the metadata keys that may carry classification
// labels worth scanning for technology mentions.
var labelMetadataFields = []string{"labels", "tags", "components", "categories"}

// Complexity vocabulary. High-signal words raise the content score, trivial
// maintenance words lower it.
var highComplexityWords = []string{"microservice", "distributed", "scalable", "architecture", "performance", "optimization"}

var mediumComplexityWords = []string{"api", "integration", "database", "authentication", "security"}

var lowComplexityWords = []string{"bug", "fix", "update", "minor", "typo"}

// advancedUsageWords indicate a technology mention in a sophisticated
// context, used for skill level inference.
var advancedUsageWords = []string{"architecture", "optimization", "performance", "scalable", "design"}
