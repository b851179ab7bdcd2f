package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/MeKo-Tech/tlpr/internal/server"
	"github.com/MeKo-Tech/tlpr/internal/testutil"
	"github.com/cucumber/godog"
)

func (testCtx *TestContext) thePlateFixture(name string) error {
	f, ok := testutil.Fixture(name)
	if !ok {
		return fmt.Errorf("unknown plate fixture %q", name)
	}
	testCtx.Fixture = f
	return nil
}

func (testCtx *TestContext) strictStatusCodesAreEnabled() error {
	testCtx.StrictStatus = true
	return nil
}

func (testCtx *TestContext) rateLimitingAllowsRequestsPerMinute(n int) error {
	testCtx.RateLimit = &server.RateLimitConfig{Enabled: true, RequestsPerMinute: n}
	return nil
}

func (testCtx *TestContext) theImageHostServesTheCarPicture() error {
	data, err := testCtx.CarPNG()
	if err != nil {
		return err
	}
	testCtx.imageStatus = http.StatusOK
	testCtx.imageContentType = "image/png"
	testCtx.imageBody = data
	testCtx.StartImageHost()
	return nil
}

func (testCtx *TestContext) theImageHostRespondsWithStatus(status int) error {
	testCtx.imageStatus = status
	testCtx.imageContentType = "image/png"
	testCtx.imageBody = nil
	testCtx.StartImageHost()
	return nil
}

func (testCtx *TestContext) theImageHostServesContent(contentType string, body string) error {
	testCtx.imageStatus = http.StatusOK
	testCtx.imageContentType = contentType
	testCtx.imageBody = []byte(body)
	testCtx.StartImageHost()
	return nil
}

func (testCtx *TestContext) do(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	testCtx.LastStatusCode = resp.StatusCode
	testCtx.LastBody = body
	testCtx.LastHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	u, err := testCtx.url(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) iPostToWithBody(path string, body *godog.DocString) error {
	u, err := testCtx.url(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, u, strings.NewReader(body.Content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

func (testCtx *TestContext) postImagePath(path, imagePath string) error {
	payload, err := json.Marshal(map[string]string{"image_path": imagePath})
	if err != nil {
		return err
	}
	return testCtx.iPostToWithBody(path, &godog.DocString{Content: string(payload)})
}

func (testCtx *TestContext) iRequestRecognitionOfTheHostedImage() error {
	return testCtx.iRequestRecognitionOfTheHostedImageAt("/process-image")
}

func (testCtx *TestContext) iRequestRecognitionOfTheHostedImageAt(path string) error {
	if testCtx.Images == nil {
		return fmt.Errorf("image host is not running")
	}
	return testCtx.postImagePath(path, testCtx.Images.URL+"/car.png")
}

func (testCtx *TestContext) iRequestRecognitionOf(imagePath string) error {
	return testCtx.postImagePath("/process-image", imagePath)
}

func (testCtx *TestContext) iUploadTheCarPicture() error {
	u, err := testCtx.url("/recognize")
	if err != nil {
		return err
	}
	data, err := testCtx.CarPNG()
	if err != nil {
		return err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "car.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, u, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iMatchTheProvinceText(text string) error {
	return testCtx.iSendAGETRequestTo("/provinces/match?text=" + url.QueryEscape(text))
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastStatusCode, testCtx.LastBody)
	}
	return nil
}

func (testCtx *TestContext) responseObject() (map[string]any, error) {
	var got map[string]any
	if err := json.Unmarshal(testCtx.LastBody, &got); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w: %s", err, testCtx.LastBody)
	}
	return got, nil
}

func (testCtx *TestContext) theResponseShouldBeTheJSON(expected *godog.DocString) error {
	var want any
	if err := json.Unmarshal([]byte(expected.Content), &want); err != nil {
		return fmt.Errorf("expected JSON is invalid: %w", err)
	}
	var got any
	if err := json.Unmarshal(testCtx.LastBody, &got); err != nil {
		return fmt.Errorf("response is not JSON: %w: %s", err, testCtx.LastBody)
	}
	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("expected %s, got %s", strings.TrimSpace(expected.Content), testCtx.LastBody)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldBe(field, value string) error {
	got, err := testCtx.responseObject()
	if err != nil {
		return err
	}
	v, ok := got[field]
	if !ok {
		return fmt.Errorf("field %q missing from %s", field, testCtx.LastBody)
	}
	if fmt.Sprint(v) != value {
		return fmt.Errorf("field %q: expected %q, got %q", field, value, fmt.Sprint(v))
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeTheError(message string) error {
	return testCtx.theResponseShouldBeTheJSON(&godog.DocString{
		Content: fmt.Sprintf(`{"error": %q}`, message),
	})
}

func (testCtx *TestContext) theResponseShouldMatchTheFixtureOutcome() error {
	f := testCtx.Fixture
	if f.WantError != "" {
		return testCtx.theResponseShouldBeTheError(f.WantError)
	}
	want, err := json.Marshal(map[string]string{
		"plate_number": f.WantPlate,
		"raw_province": f.WantRawProvince,
		"province":     f.WantProvince,
	})
	if err != nil {
		return err
	}
	return testCtx.theResponseShouldBeTheJSON(&godog.DocString{Content: string(want)})
}

func (testCtx *TestContext) theResponseShouldListProvinces(n int) error {
	var got server.ProvincesResponse
	if err := json.Unmarshal(testCtx.LastBody, &got); err != nil {
		return err
	}
	if got.Count != n || len(got.Provinces) != n {
		return fmt.Errorf("expected %d provinces, got count %d with %d names", n, got.Count, len(got.Provinces))
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHeaders.Get(name) == "" {
		return fmt.Errorf("header %q not set", name)
	}
	return nil
}

func (testCtx *TestContext) theDetectorShouldHaveSeenImages(n int) error {
	if testCtx.Detector == nil {
		return fmt.Errorf("API server is not running")
	}
	if got := testCtx.Detector.Calls(); got != n {
		return fmt.Errorf("expected detector to see %d images, saw %d", n, got)
	}
	return nil
}

// RegisterSteps installs every step definition of the API suite.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	// Setup
	sc.Step(`^the plate fixture "([^"]*)"$`, testCtx.thePlateFixture)
	sc.Step(`^strict status codes are enabled$`, testCtx.strictStatusCodesAreEnabled)
	sc.Step(`^rate limiting allows (\d+) requests? per minute$`, testCtx.rateLimitingAllowsRequestsPerMinute)
	sc.Step(`^the API server is running$`, testCtx.StartAPIServer)
	sc.Step(`^the image host serves the car picture$`, testCtx.theImageHostServesTheCarPicture)
	sc.Step(`^the image host responds with status (\d+)$`, testCtx.theImageHostRespondsWithStatus)
	sc.Step(`^the image host serves "([^"]*)" content "([^"]*)"$`, testCtx.theImageHostServesContent)

	// Requests
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I post to "([^"]*)" with body:$`, testCtx.iPostToWithBody)
	sc.Step(`^I request recognition of the hosted image$`, testCtx.iRequestRecognitionOfTheHostedImage)
	sc.Step(`^I request recognition of the hosted image at "([^"]*)"$`, testCtx.iRequestRecognitionOfTheHostedImageAt)
	sc.Step(`^I request recognition of "([^"]*)"$`, testCtx.iRequestRecognitionOf)
	sc.Step(`^I upload the car picture$`, testCtx.iUploadTheCarPicture)
	sc.Step(`^I match the province text "([^"]*)"$`, testCtx.iMatchTheProvinceText)

	// Assertions
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be the JSON:$`, testCtx.theResponseShouldBeTheJSON)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the response should be the error "([^"]*)"$`, testCtx.theResponseShouldBeTheError)
	sc.Step(`^the response should match the fixture outcome$`, testCtx.theResponseShouldMatchTheFixtureOutcome)
	sc.Step(`^the response should list (\d+) provinces$`, testCtx.theResponseShouldListProvinces)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^the detector should have seen (\d+) images?$`, testCtx.theDetectorShouldHaveSeenImages)
}
