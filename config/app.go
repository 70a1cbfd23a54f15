package config

type App struct {
	Port     string `env:"APP_PORT" default:"8080"`
	MongoURL string `env:"MONGO_URL,required"`
	MongoDB  string `env:"MONGO_DB" default:"library"`
	Env      string `env:"APP_ENV" default:"dev"`
}
