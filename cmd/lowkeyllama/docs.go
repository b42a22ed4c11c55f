package main

// General API documentation for swaggo. Build with `-tags swagger` to serve it at /swagger/.
//
// @title           lowkeyllama API
// @version         1.0
// @description     Local HTTP API that forwards prompts to an Ollama backend and returns the reassembled answer.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @host      localhost:8000
// @BasePath  /
//
// @schemes http
