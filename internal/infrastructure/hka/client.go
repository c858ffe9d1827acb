package hka

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/hka-connector/internal/domain"
	"github.com/jhoicas/hka-connector/internal/domain/entity"
	domainhka "github.com/jhoicas/hka-connector/internal/domain/hka"
	"github.com/jhoicas/hka-connector/internal/domain/repository"
	pkghka "github.com/jhoicas/hka-connector/pkg/hka"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	DefaultTestURL = "http://demoint.thefactoryhka.com.pe/clients/ServiceClients.svc"
	DefaultProdURL = "http://prod.thefactoryhka.com.pe/clients/ServiceClients.svc"

	pathAuth     = "/Autenticacion"
	pathSend     = "/Enviar"
	pathDownload = "/DescargaArchivo"

	expiryLayout = "2006-01-02 15:04:05"
	maxBody      = 32 << 20 // PDFs y CDR en base64
)

// ── Configuración ─────────────────────────────────────────────────────────────

// ClientConfig endpoints y timeouts por operación.
type ClientConfig struct {
	TestURL         string
	ProdURL         string
	AuthTimeout     time.Duration
	SendTimeout     time.Duration
	DownloadTimeout time.Duration
	Location        *time.Location // zona de fechaExpiracion
}

// Credentials credenciales HKA de una empresa.
type Credentials struct {
	CompanyID string
	User      string
	Password  string
	RUC       string
	TestMode  bool
}

// CredentialsFor extrae las credenciales de la empresa. ErrConfiguration si
// faltan usuario, clave o RUC.
func CredentialsFor(c *entity.Company) (Credentials, error) {
	if c == nil || !c.HasHKACredentials() {
		name := ""
		if c != nil {
			name = c.Name
		}
		return Credentials{}, fmt.Errorf("%w: empresa %q sin credenciales HKA o RUC", domain.ErrConfiguration, name)
	}
	return Credentials{
		CompanyID: c.ID,
		User:      c.HKAUser,
		Password:  c.HKAPassword,
		RUC:       c.RUC,
		TestMode:  c.HKATestMode,
	}, nil
}

// ── Resultados ────────────────────────────────────────────────────────────────

// SendResult respuesta de /Enviar.
type SendResult struct {
	Accepted        bool
	Message         string
	RemoteDocNumber string
	XML             []byte
}

// CodeAbsent código de DownloadResult cuando HKA no informó codigo.
const CodeAbsent = -1

// DownloadResult respuesta de /DescargaArchivo.
type DownloadResult struct {
	Code    int
	Message string
	Content []byte
}

// OK informa si la descarga trajo contenido utilizable.
func (r DownloadResult) OK() bool { return r.Code == 0 && len(r.Content) > 0 }

// ── Cliente ───────────────────────────────────────────────────────────────────

// Client implementa el protocolo JSON sobre HTTP de The Factory HKA.
// Cada llamada obtiene antes un token vigente de la caché.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	tokens     *TokenCache
	log        zerolog.Logger
}

// NewClient construye el cliente. Los timeouts se aplican por operación vía
// context, por eso el http.Client no lleva Timeout propio.
func NewClient(cfg ClientConfig, tokens repository.TokenRepository, log zerolog.Logger) *Client {
	if cfg.TestURL == "" {
		cfg.TestURL = DefaultTestURL
	}
	if cfg.ProdURL == "" {
		cfg.ProdURL = DefaultProdURL
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	c := &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
		log:        log,
	}
	c.tokens = NewTokenCache(c.Authenticate, tokens, time.Now, log).WithAuthTimeout(cfg.AuthTimeout)
	return c
}

// WithHTTPClient reemplaza el http.Client (tests, proxies).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Tokens expone la caché de tokens.
func (c *Client) Tokens() *TokenCache { return c.tokens }

func (c *Client) baseURL(testMode bool) string {
	if testMode {
		return strings.TrimRight(c.cfg.TestURL, "/")
	}
	return strings.TrimRight(c.cfg.ProdURL, "/")
}

// ── /Autenticacion ────────────────────────────────────────────────────────────

type authRequest struct {
	Usuario        string `json:"usuario"`
	Clave          string `json:"clave"`
	RUC            string `json:"ruc"`
	TipoAplicacion string `json:"tipoAplicacion"`
}

type authResponse struct {
	Codigo          *flexInt `json:"codigo"`
	Mensaje         string   `json:"mensaje"`
	Token           string   `json:"token"`
	FechaExpiracion string   `json:"fechaExpiracion"`
}

// Authenticate obtiene un token nuevo. No consulta ni actualiza la caché.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (entity.HKAToken, error) {
	appType := pkghka.AppTypeProd
	if creds.TestMode {
		appType = pkghka.AppTypeTest
	}
	req := authRequest{Usuario: creds.User, Clave: creds.Password, RUC: creds.RUC, TipoAplicacion: appType}

	var resp authResponse
	if err := c.post(ctx, c.cfg.AuthTimeout, c.baseURL(creds.TestMode)+pathAuth, req, &resp); err != nil {
		return entity.HKAToken{}, fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	if resp.Codigo != nil && *resp.Codigo != 0 {
		return entity.HKAToken{}, fmt.Errorf("%w: codigo %d: %s", domain.ErrAuthentication, int(*resp.Codigo), resp.Mensaje)
	}
	if resp.Token == "" {
		return entity.HKAToken{}, fmt.Errorf("%w: respuesta sin token: %s", domain.ErrAuthentication, resp.Mensaje)
	}
	exp, err := time.ParseInLocation(expiryLayout, strings.TrimSpace(resp.FechaExpiracion), c.cfg.Location)
	if err != nil {
		return entity.HKAToken{}, fmt.Errorf("%w: fechaExpiracion %q inválida: %w", domain.ErrAuthentication, resp.FechaExpiracion, err)
	}
	return entity.HKAToken{CompanyID: creds.CompanyID, Value: resp.Token, ExpiresAt: exp}, nil
}

// ── /Enviar ───────────────────────────────────────────────────────────────────

type sendRequest struct {
	DocumentoElectronico *domainhka.Document `json:"documentoElectronico"`
	RUC                  string              `json:"ruc"`
	Token                string              `json:"token"`
}

type sendResponse struct {
	Estatus    flexBool `json:"estatus"`
	Mensaje    string   `json:"mensaje"`
	Numeracion string   `json:"numeracion"`
	XML        string   `json:"xml"`
}

// Send envía el documentoElectronico. Un rechazo de negocio (estatus false)
// no es error: se informa en SendResult.
func (c *Client) Send(ctx context.Context, creds Credentials, doc *domainhka.Document) (SendResult, error) {
	tok, err := c.tokens.EnsureValid(ctx, creds)
	if err != nil {
		return SendResult{}, err
	}
	req := sendRequest{DocumentoElectronico: doc, RUC: creds.RUC, Token: tok.Value}

	var resp sendResponse
	if err := c.post(ctx, c.cfg.SendTimeout, c.baseURL(creds.TestMode)+pathSend, req, &resp); err != nil {
		return SendResult{}, c.onCallError(ctx, creds, err)
	}
	xmlBytes, err := decodeBase64(resp.XML)
	if err != nil {
		return SendResult{}, fmt.Errorf("%w: xml en base64 inválido: %w", domain.ErrTransport, err)
	}
	return SendResult{
		Accepted:        bool(resp.Estatus),
		Message:         resp.Mensaje,
		RemoteDocNumber: resp.Numeracion,
		XML:             xmlBytes,
	}, nil
}

// ── /DescargaArchivo ──────────────────────────────────────────────────────────

type downloadRequest struct {
	RUC         string `json:"ruc"`
	Token       string `json:"token"`
	Documento   string `json:"documento"`
	TipoArchivo string `json:"tipoArchivo"`
}

type downloadResponse struct {
	Codigo  *flexInt `json:"codigo"`
	Mensaje string   `json:"mensaje"`
	Archivo string   `json:"archivo"`
}

// Download descarga un artefacto. fullDocumentID es TIPO-SERIE-CORRELATIVO.
func (c *Client) Download(ctx context.Context, creds Credentials, fullDocumentID string, kind entity.ArtifactKind) (DownloadResult, error) {
	tok, err := c.tokens.EnsureValid(ctx, creds)
	if err != nil {
		return DownloadResult{}, err
	}
	req := downloadRequest{
		RUC:         creds.RUC,
		Token:       tok.Value,
		Documento:   creds.RUC + "-" + fullDocumentID,
		TipoArchivo: string(kind),
	}

	var resp downloadResponse
	if err := c.post(ctx, c.cfg.DownloadTimeout, c.baseURL(creds.TestMode)+pathDownload, req, &resp); err != nil {
		return DownloadResult{}, c.onCallError(ctx, creds, err)
	}
	content, err := decodeBase64(resp.Archivo)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("%w: archivo en base64 inválido: %w", domain.ErrTransport, err)
	}
	if resp.Codigo == nil {
		return DownloadResult{Code: CodeAbsent, Message: "respuesta sin codigo: " + resp.Mensaje}, nil
	}
	return DownloadResult{Code: int(*resp.Codigo), Message: resp.Mensaje, Content: content}, nil
}

// onCallError invalida el token si HKA lo rechazó.
func (c *Client) onCallError(ctx context.Context, creds Credentials, err error) error {
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusUnauthorized {
		if ierr := c.tokens.Invalidate(ctx, creds.CompanyID); ierr != nil {
			c.log.Warn().Err(ierr).Str("company_id", creds.CompanyID).Msg("no se pudo invalidar el token HKA")
		}
		return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	return err
}

// ── Transporte ────────────────────────────────────────────────────────────────

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

// post serializa body, aplica el timeout de la operación y decodifica la respuesta en out.
func (c *Client) post(ctx context.Context, timeout time.Duration, url string, body, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("hka: serializar request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("hka: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: timeout o cancelación: %w", domain.ErrTransport, ctx.Err())
		}
		return fmt.Errorf("%w: llamada HTTP fallida: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: leer respuesta: %w", domain.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %w", domain.ErrTransport, &statusError{code: resp.StatusCode, body: truncate(string(raw), 512)})
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: respuesta JSON malformada: %w", domain.ErrTransport, err)
	}
	return nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ── Tipos JSON tolerantes ─────────────────────────────────────────────────────

// flexBool acepta true/false, números (distinto de cero = true) o strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "", "null", "false", "0", "no":
		*b = false
		return nil
	case "true", "1", "si", "sí", "yes":
		*b = true
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*b = f != 0
		return nil
	}
	return fmt.Errorf("estatus no booleano: %s", data)
}

// flexInt acepta números o strings numéricos.
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("codigo no numérico: %s", data)
		}
		n = int(f)
	}
	*i = flexInt(n)
	return nil
}
